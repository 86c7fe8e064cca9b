// Package llm talks to the model backends: an OpenAI-compatible streaming
// client, a Gemini client, the candidate catalog, and the study-plan prompt.
package llm

import (
	"errors"
	"strings"
)

// ErrEmptyStream marks a candidate whose stream completed without producing
// any output. The router treats it like any other candidate failure and
// advances.
var ErrEmptyStream = errors.New("stream produced no output")

// Chunk is one increment of a streamed response: the new text delta plus the
// cumulative usage-token count reported so far (0 until the backend sends
// usage).
type Chunk struct {
	Delta string
	Usage int
}

// Observer receives the running accumulated text and cumulative usage after
// every chunk. Usage is monotonically non-decreasing.
type Observer func(accumulated string, usage int)

// Accumulate drains a chunk sequence into the final text. The sequence ends
// when the channel closes (normal completion, including the end sentinel) or
// errs yields an error.
//
// Failure policy is best-effort delivery: an error after at least one
// accumulated character returns the partial text as the success value; an
// error, or clean termination, with zero characters is a failure.
func Accumulate(chunks <-chan Chunk, errs <-chan error, observe Observer) (string, int, error) {
	var buf strings.Builder
	usage := 0

	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			buf.WriteString(chunk.Delta)
			if chunk.Usage > usage {
				usage = chunk.Usage
			}
			if observe != nil {
				observe(buf.String(), usage)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && buf.Len() == 0 {
				return "", usage, err
			}
			// Partial output survives a disconnection.
			errs = nil
		}
	}

	if buf.Len() == 0 {
		return "", usage, ErrEmptyStream
	}
	return buf.String(), usage, nil
}
