/*
 * MIT License
 *
 * Copyright (c) 2026 Quark Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package config

import (
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Goliworks/Quark/internal/errs"
)

// Load reads the declarative configuration file at path (and any files
// it names under import = [...]), validates it, and compiles it into a
// ServiceConfig. This is the supervisor's sole entry point into the
// config package.
func Load(path string) (*ServiceConfig, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	for _, imp := range doc.Import {
		if !filepath.IsAbs(imp) {
			imp = filepath.Join(filepath.Dir(path), imp)
		}

		idoc, err := readDocument(imp)
		if err != nil {
			return nil, err
		}

		for name, svc := range idoc.Services {
			if doc.Services == nil {
				doc.Services = map[string]rawService{}
			}
			doc.Services[name] = svc
		}
		for name, poolCfg := range idoc.LoadBalancers {
			if doc.LoadBalancers == nil {
				doc.LoadBalancers = map[string]rawLoadBalancer{}
			}
			doc.LoadBalancers[name] = poolCfg
		}
	}

	return Compile(doc)
}

func readDocument(path string) (*rawDocument, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errs.Wrap(errs.ConfigParse, "read config file "+path, err)
	}

	var doc rawDocument
	if err := v.Unmarshal(&doc); err != nil {
		return nil, errs.Wrap(errs.ConfigParse, "decode config file "+path, err)
	}

	if err := validateServices(doc.Services); err != nil {
		return nil, err
	}

	return &doc, nil
}

func validateServices(services map[string]rawService) error {
	val := validator.New()
	for id, svc := range services {
		if err := val.Struct(svc); err != nil {
			return errs.Wrap(errs.ConfigValidate, "service "+id+" failed validation", err)
		}
	}
	return nil
}
