package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/xxh3"
)

// ChunkKind represents the structural granularity of a code chunk.
type ChunkKind string

const (
	KindFileChunk ChunkKind = "file"
	KindClass     ChunkKind = "class"
	KindFunction  ChunkKind = "function"
	KindMethod    ChunkKind = "method"
	KindBlock     ChunkKind = "block"
	KindSection   ChunkKind = "section"
	KindParagraph ChunkKind = "paragraph"
)

// ParseQuality records how a chunk's content was produced.
type ParseQuality string

const (
	ParseOK       ParseQuality = "ok"
	ParseFallback ParseQuality = "fallback"
	ParseInvalid  ParseQuality = "invalid"
)

// DDDTags are domain-driven-design pattern signals detected from a
// chunk's name (and, for Go, its declared kind). They are stored with
// the chunk; the Search Engine's scoring does not read them.
type DDDTags struct {
	IsAggregateRoot bool
	IsEntity        bool
	IsValueObject   bool
	IsRepository    bool
	IsService       bool
	IsCommand       bool
	IsQuery         bool
	IsHandler       bool
}

// Any reports whether at least one DDD pattern was detected.
func (d DDDTags) Any() bool {
	return d.IsAggregateRoot || d.IsEntity || d.IsValueObject ||
		d.IsRepository || d.IsService || d.IsCommand || d.IsQuery || d.IsHandler
}

// Chunk is a contiguous region of a source artifact with semantic meaning.
type Chunk struct {
	ID       string
	FilePath string

	StartLine int
	EndLine   int

	Kind     ChunkKind
	Name     string
	Language string

	Content     string
	ContentHash [16]byte

	// Skeleton holds a class chunk's signature + docstring + method
	// signature summary, distinct from Content (the full body). Empty
	// for non-class kinds.
	Skeleton string

	Docstring      string
	LeadingComment string

	ParentID string // empty for a file-level root

	ParseQuality ParseQuality

	Quality Quality
	DDD     DDDTags

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComputeContentHash derives the 128-bit content hash from Content.
// Two chunks with equal ContentHash are interchangeable for embedding
// purposes.
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = ContentHash(c.Content)
}

// ContentHash computes the 128-bit deduplication digest of a chunk body.
// xxh3 is used in place of a truncated SHA-256: it is well distributed at
// 128 bits and considerably cheaper per call, trading digest width for
// throughput at the chunk level where speed matters more than
// cryptographic strength.
func ContentHash(content string) [16]byte {
	h := xxh3.Hash128([]byte(content))
	var out [16]byte
	putUint64(out[:8], h.Hi)
	putUint64(out[8:], h.Lo)
	return out
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// DeriveID computes the chunk's stable identifier from (file path, start
// line, end line, kind). It is content-independent so that editing a
// chunk's body does not change its identity, only its ContentHash.
func DeriveID(filePath string, startLine, endLine int, kind ChunkKind) string {
	sum := sha256.Sum256([]byte(filePath + "\x00" + itoa(startLine) + "\x00" + itoa(endLine) + "\x00" + string(kind)))
	return hex.EncodeToString(sum[:16])
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ValidateContent checks structural invariants independent of chunk kind.
func (c *Chunk) ValidateContent() error {
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	return nil
}

// ValidateKind checks that Kind is one of the declared chunk kinds.
func (c *Chunk) ValidateKind() error {
	switch c.Kind {
	case KindFileChunk, KindClass, KindFunction, KindMethod, KindBlock, KindSection, KindParagraph:
		return nil
	default:
		return errors.New("invalid chunk kind")
	}
}

// Validate performs comprehensive validation of the chunk.
func (c *Chunk) Validate() error {
	if c.FilePath == "" {
		return errors.New("file path is required")
	}
	if err := c.ValidateContent(); err != nil {
		return err
	}
	if err := c.ValidateKind(); err != nil {
		return err
	}
	return nil
}

// FullContent returns Content prefixed by the leading comment when
// present. Docstring is not included.
func (c *Chunk) FullContent() string {
	result := ""
	if c.LeadingComment != "" {
		result += c.LeadingComment + "\n"
	}
	result += c.Content
	return result
}
