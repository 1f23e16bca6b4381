// Package hprof decodes Java HPROF heap dump files into typed records.
//
// # Package Organization
//
//   - types.go: Tags, basic types and the record structs handed to consumers
//   - value.go: Value, the decoded scalar of one basic type
//   - core_reader.go: Buffered stream reader (header, record framing)
//   - core_window.go: Bounds-checked cursor over one record body
//   - registry.go: ClassRegistry, per-parse class layouts and field resolution
//   - parser.go: Parser and the top-level record loop
//   - heap.go: Heap dump sub-record decoding
//   - handler.go: RecordHandler, NullHandler and MultiHandler
//   - errors.go: Error kinds and DecodeError
//
// # Usage Example
//
//	type classCounter struct {
//	    hprof.NullHandler
//	    n int
//	}
//
//	func (c *classCounter) ClassDump(*hprof.ClassDump) error {
//	    c.n++
//	    return nil
//	}
//
//	counter := &classCounter{}
//	parser := hprof.NewParser(hprof.DefaultParserOptions())
//	summary, err := parser.Parse(ctx, reader, counter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Decoding Model
//
// Parsing is single-pass and forward-only. The identifier size read from
// the header governs every identifier and object value that follows.
// Records are delivered synchronously in stream order; an INSTANCE DUMP
// can only be decoded after the CLASS DUMPs of its class and all of its
// ancestors, because its field bytes are sliced by the inherited field
// list. Every failure is fatal: errors match one of the Err* kinds with
// errors.Is, and callback errors are returned unchanged in the chain.
package hprof
