package ipc

import (
	"log"
	"time"
)

// RequestLogger logs an incoming request. Called from handleConnection
// before dispatch.
func RequestLogger(req *Request) {
	log.Printf("Request: cmd=%s", req.Cmd)
}

// ResponseLogger logs the outcome and latency of a dispatched request.
// Called from handleConnection after handleRequest returns.
func ResponseLogger(resp *Response, duration time.Duration) {
	if resp.Success {
		log.Printf("Response: success=true duration=%v", duration)
	} else {
		log.Printf("Response: success=false error=%s duration=%v", resp.Error, duration)
	}
}
