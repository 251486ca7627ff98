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

// Package conf holds the engine options of the game-state storage engine.
package conf

import (
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"github.com/CovenantSQL/GameSQL/utils/log"
)

// Config holds the engine options.
type Config struct {
	// DatabaseFile is the sqlite database file; ":memory:" opens a
	// temporary database.
	DatabaseFile string `yaml:"DatabaseFile"`
	// LogLevel sets the engine log level by name.
	LogLevel string `yaml:"LogLevel"`
	// BatchSize batches this many block transactions into one storage
	// transaction while catching up; values below two disable batching.
	BatchSize int `yaml:"BatchSize"`
	// MessForDebug reverses unordered selects to shake out ordering
	// assumptions in the game logic.
	MessForDebug bool `yaml:"MessForDebug"`
}

// LoadConfig loads config from configPath.
func LoadConfig(configPath string) (config *Config, err error) {
	configBytes, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.Errorf("read config file failed: %s", err)
		return
	}
	config = &Config{}
	err = yaml.Unmarshal(configBytes, config)
	if err != nil {
		log.Errorf("unmarshal config file failed: %s", err)
		config = nil
		return
	}
	return
}
