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

package fdp

import (
	"slices"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/typegraph"
)

// path is an extension of [protoreflect.SourcePath] to provide an API for path tracking.
type path protoreflect.SourcePath

// clone returns a copy of the currently tracked source path.
func (p *path) clone() []int32 {
	return slices.Clone([]int32(*p))
}

// with adds the given elements to the tracked path and returns a reset function. The reset
// trims the length of the given elements off the tracked path. It is the caller's
// responsibility to ensure that reset is called on a valid path length.
func (p *path) with(elements ...int32) func() {
	*p = append(*p, elements...)
	return func() {
		if len(*p) > 0 {
			*p = []int32(*p)[:len(*p)-len(elements)]
		}
	}
}

// addSourceLocation records the position and comment of the element at the
// current path. Positions in other units than the current file's are not
// known, so they get an empty span.
func (g *generator) addSourceLocation(pos typegraph.Location, comment string) {
	if g.sourceCodeInfo == nil {
		return
	}
	var line, col int32
	if pos.Unit == g.currentFile.Source {
		line, col = int32(max(pos.Line-1, 0)), int32(max(pos.Column-1, 0))
	}
	loc := &descriptorpb.SourceCodeInfo_Location{
		Path: g.path.clone(),
		Span: []int32{line, col, col},
	}
	if comment != "" {
		loc.LeadingComments = addr(leadingComment(comment))
	}
	g.sourceCodeInfo.Location = append(g.sourceCodeInfo.Location, loc)
}

// leadingComment formats a comment the way protoc records the text of a
// line comment: each line keeps the space after the slashes, and ends in a
// newline.
func leadingComment(text string) string {
	var buf strings.Builder
	for line := range strings.SplitSeq(strings.TrimRight(text, "\n"), "\n") {
		if line != "" {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.String()
}
