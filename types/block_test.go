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

package types

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBlockData(t *testing.T) {
	Convey("Block envelopes", t, func() {
		Convey("The engine header is decoded, the rest kept raw", func() {
			blk, err := ParseBlockData([]byte(`{
				"block": {"hash": "aa", "parent": "bb", "height": 7},
				"moves": [{"name": "x"}]
			}`))
			So(err, ShouldBeNil)
			So(blk.Block.Hash, ShouldEqual, "aa")
			So(blk.Block.Parent, ShouldEqual, "bb")
			So(blk.Block.Height, ShouldEqual, 7)
			So(string(blk.Moves), ShouldContainSubstring, `"name"`)
		})

		Convey("Invalid JSON is rejected", func() {
			blk, err := ParseBlockData([]byte(`{`))
			So(err, ShouldNotBeNil)
			So(blk, ShouldBeNil)
		})
	})
}
