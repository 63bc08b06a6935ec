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

package plugin

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/pluginpb"
)

var (
	// ErrGeneratorFailed is returned when a plugin fails, either by exiting
	// unsuccessfully or by reporting an error in its response.
	ErrGeneratorFailed = errors.New("code generator failed")
	// ErrInsertionPoint is returned for responses that use insertion points,
	// which need the output of another plugin to insert into.
	ErrInsertionPoint = errors.New("insertion points are not supported")
	// ErrUnsafePath is returned for response files that would be written
	// outside of the output directory.
	ErrUnsafePath = errors.New("unsafe output path")
)

// File is a file generated by a plugin.
type File struct {
	// The path of the file, relative to the output directory, using forward
	// slashes.
	Name    string
	Content []byte
}

// DecodeResponse decodes the response of the named plugin into the files
// it generated, in order.
//
// A file without a name continues the previous file, as with protoc. The
// files a response names must be relative and stay within the output
// directory.
func DecodeResponse(name string, b []byte) ([]File, error) {
	fail := func(err error) ([]File, error) {
		return nil, fmt.Errorf("[%s] %w", name, err)
	}

	resp := new(pluginpb.CodeGeneratorResponse)
	if err := proto.Unmarshal(b, resp); err != nil {
		return fail(fmt.Errorf("invalid response: %w", err))
	}
	if resp.Error != nil {
		return fail(fmt.Errorf("%w: %s", ErrGeneratorFailed, resp.GetError()))
	}

	var files []File
	for i, f := range resp.GetFile() {
		if f.GetInsertionPoint() != "" {
			return fail(fmt.Errorf("%w: %s in %s", ErrInsertionPoint, f.GetInsertionPoint(), f.GetName()))
		}
		if f.GetName() == "" {
			if len(files) == 0 {
				return fail(fmt.Errorf("file %d has no name, and there is no previous file", i))
			}
			files[len(files)-1].Content = append(files[len(files)-1].Content, f.GetContent()...)
			continue
		}
		if !isSafe(f.GetName()) {
			return fail(fmt.Errorf("%w: %q", ErrUnsafePath, f.GetName()))
		}
		files = append(files, File{Name: f.GetName(), Content: []byte(f.GetContent())})
	}
	return files, nil
}

func isSafe(name string) bool {
	name = strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(name) || (len(name) > 1 && name[1] == ':') {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
