/*
Copyright 2026 the GekkoFS authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package httputil contains the small set of shared HTTP helpers the
// daemon's RPC handlers and the client's RPC facade both need: JSON
// responses and the connection-reuse-friendly body close. The error
// wire format lives in pkg/rpcproto, not here.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
)

// BadRequestError writes a 400 response, logging errorMessage
// (formatted against args) for the operator.
func BadRequestError(conn http.ResponseWriter, errorMessage string, args ...interface{}) {
	conn.WriteHeader(http.StatusBadRequest)
	log.Printf("Bad request: %s", fmt.Sprintf(errorMessage, args...))
	fmt.Fprintf(conn, "<h1>Bad Request</h1>")
}

// ReturnJSON writes data as an indented JSON body with a 200 status.
func ReturnJSON(rw http.ResponseWriter, data interface{}) {
	ReturnJSONCode(rw, 200, data)
}

// ReturnJSONCode writes data as an indented JSON body with the given
// status code.
func ReturnJSONCode(rw http.ResponseWriter, code int, data interface{}) {
	rw.Header().Set("Content-Type", "text/javascript")
	js, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		BadRequestError(rw, fmt.Sprintf("JSON serialization error: %v", err))
		return
	}
	rw.Header().Set("Content-Length", strconv.Itoa(len(js)+1))
	rw.WriteHeader(code)
	rw.Write(js)
	rw.Write([]byte("\n"))
}

// CloseBody should be used to close an http.Response.Body.
//
// It does a final little Read to maybe see EOF (to trigger connection
// re-use) before calling Close.
func CloseBody(rc io.ReadCloser) {
	// Go 1.2 pseudo-bug: the NewDecoder(res.Body).Decode never
	// sees an EOF, so we have to do this 0-byte copy here to
	// force the http Transport to see its own EOF and recycle the
	// connection. In Go 1.1 at least, the Close would cause it to
	// read to EOF and recycle the connection, but in Go 1.2, a
	// Close before EOF kills the underlying TCP connection.
	//
	// Justification for 3 byte reads: two for up to "\r\n" after
	// a JSON document, and then 1 to see EOF if we haven't yet.
	buf := make([]byte, 1)
	for i := 0; i < 3; i++ {
		if _, err := rc.Read(buf); err != nil {
			break
		}
	}
	rc.Close()
}
