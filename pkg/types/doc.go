// Package types defines the wire types shared by checkfeed-server and the
// checkfeed CLI: the column schema, input arguments, and the page of rows a
// reporting layer receives. They are the JSON representation served by the
// REST API and the WebSocket stream.
package types
