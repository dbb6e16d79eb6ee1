// Package stream multiplexes a generated answer and its retrieved source
// records over one ordered byte stream, and decodes that stream incrementally.
//
// Two framing strategies are supported:
//   - StrategyJSONLines: one {"type","value"} JSON object per line (default)
//   - StrategyControl: raw answer text, a single 0x1E, then JSON records each
//     followed by 0x1D
//
// # Producing
//
//	f, _ := stream.NewFramer(stream.StrategyJSONLines, w)
//	_ = f.WriteEvent(stream.Chunk("Hel"))
//	_ = f.WriteEvent(stream.Chunk("lo"))
//	doc, _ := stream.Document(map[string]string{"id": "d1"})
//	_ = f.WriteEvent(doc)
//	_ = f.Close()
//
// # Consuming
//
//	dec, _ := stream.NewDecoder(stream.StrategyJSONLines,
//	    stream.WithAnswerHandler(func(answer string) { render(answer) }),
//	)
//	_, err := io.Copy(dec, resp.Body)
//	err = errors.Join(err, dec.Close())
//	docs := dec.Documents()
//
// The end of a stream is the end of the transport. Decoders never wait for
// an explicit terminator; Close reports whether the bytes seen so far form a
// complete stream.
package stream
