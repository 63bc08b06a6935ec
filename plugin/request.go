// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package plugin runs protoc code generator plugins.
//
// A plugin reads a serialized [pluginpb.CodeGeneratorRequest] from its
// input and writes a [pluginpb.CodeGeneratorResponse] to its output. Plugins
// are run as executables by [ExecRunner], or as WASI modules by
// [WasmRunner].
package plugin

import (
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"
)

// The protoc version reported to plugins.
const (
	versionMajor = 5
	versionMinor = 26
	versionPatch = 0
)

// NewRequest builds the request for generating files, which must be
// described by set. Files are named by path.
//
// params are rendered with [FormatParameter].
func NewRequest(files []string, set *descriptorpb.FileDescriptorSet, params map[string]any) *pluginpb.CodeGeneratorRequest {
	req := &pluginpb.CodeGeneratorRequest{
		FileToGenerate: append([]string(nil), files...),
		ProtoFile:      set.GetFile(),
		CompilerVersion: &pluginpb.Version{
			Major: proto.Int32(versionMajor),
			Minor: proto.Int32(versionMinor),
			Patch: proto.Int32(versionPatch),
		},
	}
	if p := FormatParameter(params); p != "" {
		req.Parameter = proto.String(p)
	}
	return req
}

// FormatParameter renders plugin parameters as comma-separated k=v pairs,
// sorted by key. A true bool is rendered as the bare key.
func FormatParameter(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		switch v := params[k].(type) {
		case bool:
			if v {
				parts[i] = k
				continue
			}
		case nil:
			parts[i] = k
			continue
		}
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, ",")
}
