package tlsstore

import "errors"

var errNoCertificate = errors.New("tlsstore: no certificate for server name")
