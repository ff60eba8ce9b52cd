// Package session runs the request loop: read a frame, decode it, hand it to
// the dispatcher, and write the framed response.
//
// Framing and decode errors always end the session since the stream can no
// longer be trusted. Usage errors end it under the Fatal policy and are sent
// back as error responses under Continue. Native failures, including a guest
// exit, always end it.
package session
