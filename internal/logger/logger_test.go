// Copyright (c) 2026 WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestGetLogLevelFromEnv(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		t.Setenv("LOG_LEVEL", in)
		if got := getLogLevelFromEnv(); got != want {
			t.Errorf("LOG_LEVEL=%q: got %v, want %v", in, got, want)
		}
	}
}

func TestBuildHonoursLevel(t *testing.T) {
	for _, env := range []string{"prod", "dev"} {
		l, err := build(env, zapcore.WarnLevel)
		if err != nil {
			t.Fatalf("build(%q): %v", env, err)
		}
		if l.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("build(%q): info should be disabled at warn level", env)
		}
		if !l.Core().Enabled(zapcore.ErrorLevel) {
			t.Errorf("build(%q): error should be enabled at warn level", env)
		}
	}
}
