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

// Package prototest contains assertions about descriptors for tests.
package prototest

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/descriptorpb"
)

// AssertValidSet checks that set is a valid, self-contained descriptor set,
// returning the files it describes.
func AssertValidSet(t *testing.T, set *descriptorpb.FileDescriptorSet) *protoregistry.Files {
	t.Helper()
	files, err := protodesc.NewFiles(set)
	require.NoError(t, err, "invalid descriptor set")
	return files
}

// FindFile returns the named file of set, failing the test if there is none.
func FindFile(t *testing.T, set *descriptorpb.FileDescriptorSet, name string) *descriptorpb.FileDescriptorProto {
	t.Helper()
	for _, fd := range set.GetFile() {
		if fd.GetName() == name {
			return fd
		}
	}
	require.Failf(t, "missing file", "no file named %q in set", name)
	return nil
}

func AssertMessagesEqual(t *testing.T, exp, act proto.Message, msgAndArgs ...any) {
	t.Helper()
	AssertMessagesEqualWithOptions(t, exp, act, nil, msgAndArgs...)
}

func AssertMessagesEqualWithOptions(t *testing.T, exp, act proto.Message, opts []cmp.Option, msgAndArgs ...any) {
	t.Helper()
	cmpOpts := []cmp.Option{protocmp.Transform()}
	cmpOpts = append(cmpOpts, opts...)
	if diff := cmp.Diff(exp, act, cmpOpts...); diff != "" {
		var prefix string
		if len(msgAndArgs) == 1 {
			if msg, ok := msgAndArgs[0].(string); ok {
				prefix = msg + ": "
			} else {
				prefix = fmt.Sprintf("%+v: ", msgAndArgs[0])
			}
		} else if len(msgAndArgs) > 1 {
			prefix = fmt.Sprintf(msgAndArgs[0].(string)+": ", msgAndArgs[1:]...)
		}

		t.Errorf("%smessage mismatch (-want +got):\n%v", prefix, diff)
	}
}
