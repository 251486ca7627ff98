/*
 * Copyright 2019 The GameSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package conf

import (
	"io/ioutil"
	"os"
	"path"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadConfig(t *testing.T) {
	Convey("Loading engine options", t, func() {
		dir, err := ioutil.TempDir("", "gamesql-conf-test-")
		So(err, ShouldBeNil)
		Reset(func() {
			os.RemoveAll(dir)
		})

		Convey("A full config file is decoded", func() {
			fl := path.Join(dir, "config.yaml")
			err = ioutil.WriteFile(fl, []byte(`
DatabaseFile: /var/lib/game/state.db
LogLevel: debug
BatchSize: 100
MessForDebug: true
`), 0644)
			So(err, ShouldBeNil)

			cfg, err := LoadConfig(fl)
			So(err, ShouldBeNil)
			So(cfg.DatabaseFile, ShouldEqual, "/var/lib/game/state.db")
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.BatchSize, ShouldEqual, 100)
			So(cfg.MessForDebug, ShouldBeTrue)
		})

		Convey("Missing keys keep their zero values", func() {
			fl := path.Join(dir, "partial.yaml")
			err = ioutil.WriteFile(fl, []byte("DatabaseFile: ':memory:'\n"), 0644)
			So(err, ShouldBeNil)

			cfg, err := LoadConfig(fl)
			So(err, ShouldBeNil)
			So(cfg.DatabaseFile, ShouldEqual, ":memory:")
			So(cfg.BatchSize, ShouldEqual, 0)
			So(cfg.MessForDebug, ShouldBeFalse)
		})

		Convey("A missing file reports an error", func() {
			_, err := LoadConfig(path.Join(dir, "nope.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("Malformed YAML reports an error", func() {
			fl := path.Join(dir, "bad.yaml")
			err = ioutil.WriteFile(fl, []byte(":\n  - ]["), 0644)
			So(err, ShouldBeNil)
			cfg, err := LoadConfig(fl)
			So(err, ShouldNotBeNil)
			So(cfg, ShouldBeNil)
		})
	})
}
