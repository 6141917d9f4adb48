package display

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func escapes(out string) []string {
	var seqs []string
	for _, part := range strings.Split(out, apcStart)[1:] {
		seqs = append(seqs, strings.TrimSuffix(part, apcEnd))
	}
	return seqs
}

func TestKittyEncoder_Encode(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		columns    int
		id         uint32
		wantChunks int
		wantFirst  string
	}{
		{
			name:       "empty payload writes nothing",
			size:       0,
			wantChunks: 0,
		},
		{
			name:       "single chunk",
			size:       16,
			wantChunks: 1,
			wantFirst:  "a=T,f=100,q=2;",
		},
		{
			name:       "exactly one chunk of base64",
			size:       maxChunk * 3 / 4,
			wantChunks: 1,
			wantFirst:  "a=T,f=100,q=2;",
		},
		{
			name:       "chunked with columns",
			size:       maxChunk,
			columns:    32,
			wantChunks: 2,
			wantFirst:  "a=T,f=100,q=2,c=32,m=1;",
		},
		{
			name:       "tagged image replaces in place",
			size:       16,
			id:         7,
			wantChunks: 1,
			wantFirst:  "a=T,f=100,q=2,i=7,p=1;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			data := bytes.Repeat([]byte{0xab}, tt.size)

			err := NewKittyEncoder(&buf).WithColumns(tt.columns).WithID(tt.id).Encode(data)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			seqs := escapes(buf.String())
			if len(seqs) != tt.wantChunks {
				t.Fatalf("got %d escapes, want %d: %q", len(seqs), tt.wantChunks, buf.String())
			}
			if tt.wantChunks == 0 {
				return
			}
			if !strings.HasPrefix(seqs[0], tt.wantFirst) {
				t.Errorf("first escape = %.40q, want prefix %q", seqs[0], tt.wantFirst)
			}

			var payload strings.Builder
			for i, seq := range seqs {
				keys, chunk, _ := strings.Cut(seq, ";")
				if len(chunk) > maxChunk {
					t.Errorf("chunk %d carries %d bytes, max %d", i, len(chunk), maxChunk)
				}
				if i > 0 && strings.Contains(keys, "a=T") {
					t.Errorf("continuation chunk %d repeats control keys: %q", i, keys)
				}
				payload.WriteString(chunk)
			}
			if len(seqs) > 1 && !strings.HasPrefix(seqs[len(seqs)-1], "m=0;") {
				t.Errorf("last chunk should close with m=0: %.10q", seqs[len(seqs)-1])
			}
			if got := payload.String(); got != base64.StdEncoding.EncodeToString(data) {
				t.Error("reassembled payload does not match input")
			}
		})
	}
}

func TestKittyEncoder_Delete(t *testing.T) {
	var buf bytes.Buffer
	if err := NewKittyEncoder(&buf).Delete(); err != nil || buf.Len() != 0 {
		t.Errorf("untagged Delete() wrote %q, err %v", buf.String(), err)
	}

	if err := NewKittyEncoder(&buf).WithID(3).Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, want := buf.String(), "\x1b_Ga=d,d=I,i=3,q=2\x1b\\"; got != want {
		t.Errorf("Delete() wrote %q, want %q", got, want)
	}
}

type errorWriter struct {
	err error
}

func (w *errorWriter) Write(p []byte) (int, error) {
	return 0, w.err
}

func TestKittyEncoder_WriteError(t *testing.T) {
	enc := NewKittyEncoder(&errorWriter{err: bytes.ErrTooLarge})
	if err := enc.Encode([]byte("test")); err == nil {
		t.Error("expected error from failing writer")
	}
	if err := enc.WithID(1).Delete(); err == nil {
		t.Error("expected error from failing writer on delete")
	}
}
