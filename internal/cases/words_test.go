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

package cases_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bufbuild/typeproto/internal/cases"
)

func TestWordsIdentifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		words []string
		snake string
		enum  string
	}{
		{name: "id", words: []string{"id"}, snake: "id", enum: "ID"},
		{name: "getUser", words: []string{"get", "User"}, snake: "get_user", enum: "GET_USER"},
		{name: "createdAt", words: []string{"created", "At"}, snake: "created_at", enum: "CREATED_AT"},
		{name: "isA", words: []string{"is", "A"}, snake: "is_a", enum: "IS_A"},
		{name: "HTTPServer", words: []string{"HTTP", "Server"}, snake: "http_server", enum: "HTTP_SERVER"},
		{name: "XMLHttpRequest", words: []string{"XML", "Http", "Request"}, snake: "xml_http_request", enum: "XML_HTTP_REQUEST"},
		{name: "v2Api", words: []string{"v2", "Api"}, snake: "v2_api", enum: "V2_API"},
		{name: "StatusActive", words: []string{"Status", "Active"}, snake: "status_active", enum: "STATUS_ACTIVE"},
		{name: "user_service", words: []string{"user", "service"}, snake: "user_service", enum: "USER_SERVICE"},
		{name: "_private", words: []string{"private"}, snake: "private", enum: "PRIVATE"},
		{name: "snake_caseName", words: []string{"snake", "case", "Name"}, snake: "snake_case_name", enum: "SNAKE_CASE_NAME"},
		// An uppercase run at the end stays one word.
		{name: "userID", words: []string{"userID"}, snake: "userid", enum: "USERID"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.words, slices.Collect(cases.Words(test.name)))
			assert.Equal(t, test.snake, cases.Snake.Convert(test.name))
			assert.Equal(t, test.enum, cases.Enum.Convert(test.name))
		})
	}
}

func TestWordsStop(t *testing.T) {
	t.Parallel()

	var first string
	for word := range cases.Words("listOpenOrders") {
		first = word
		break
	}
	assert.Equal(t, "list", first)

	var got []string
	for word := range cases.Words("a_b_c") {
		got = append(got, word)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestOuterClassname(t *testing.T) {
	t.Parallel()

	for stem, want := range map[string]string{
		"users":        "Users",
		"userService":  "UserService",
		"user_service": "UserService",
		"api2":         "Api2",
	} {
		assert.Equal(t, want, cases.Pascal.Convert(stem), stem)
	}
}
