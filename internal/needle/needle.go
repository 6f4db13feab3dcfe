// Package needle implements the matcher abstraction Session.Expect scans
// the read buffer with: literal bytes, compiled regex, end-of-file, a
// fixed byte count, and an ordered alternation of sub-needles.
package needle

import "regexp"

// Kind classifies the outcome of a Find call.
type Kind int

const (
	// NeedMore means the needle cannot decide yet; append more bytes
	// (or observe EOF) and try again.
	NeedMore Kind = iota
	// Match means the needle matched; Start/End/Groups are valid.
	Match
	// NoMatchPossible means the needle can never match no matter what
	// bytes are appended — distinct from NeedMore only once eof is true
	// (or, for NBytes, once the buffer has reached its final length).
	NoMatchPossible
)

// Find is the result of evaluating a Needle against a buffer slice.
type Find struct {
	Kind   Kind
	Start  int
	End    int
	Groups [][2]int // Groups[0] is always {Start, End}; absent groups are {-1,-1}.
}

// Needle is a predicate over a byte buffer plus an end-of-file flag.
type Needle interface {
	Find(buf []byte, eof bool) Find
}

// Bytes matches the first occurrence of a literal byte sequence.
func Bytes(seq []byte) Needle {
	return bytesNeedle{seq: append([]byte(nil), seq...)}
}

// String is a convenience wrapper over Bytes for literal string patterns.
func String(s string) Needle {
	return Bytes([]byte(s))
}

type bytesNeedle struct{ seq []byte }

func (n bytesNeedle) Find(buf []byte, eof bool) Find {
	if len(n.seq) == 0 {
		return Find{Kind: Match, Start: 0, End: 0, Groups: [][2]int{{0, 0}}}
	}
	idx := indexBytes(buf, n.seq)
	if idx >= 0 {
		end := idx + len(n.seq)
		return Find{Kind: Match, Start: idx, End: end, Groups: [][2]int{{idx, end}}}
	}
	if eof {
		return Find{Kind: NoMatchPossible}
	}
	return Find{Kind: NeedMore}
}

func indexBytes(buf, seq []byte) int {
	if len(seq) > len(buf) {
		return -1
	}
	for i := 0; i+len(seq) <= len(buf); i++ {
		if string(buf[i:i+len(seq)]) == string(seq) {
			return i
		}
	}
	return -1
}

// Regex matches the leftmost match of a compiled regular expression
// against the buffer interpreted as raw bytes.
func Regex(re *regexp.Regexp) Needle {
	return regexNeedle{re: re}
}

// MustCompileRegex compiles pattern and wraps it as a Needle, panicking on
// an invalid pattern — for call sites with a pattern known at compile
// time. Session.Spawn-adjacent callers building patterns from user input
// should use regexp.Compile directly and surface RegexCompileError.
func MustCompileRegex(pattern string) Needle {
	return Regex(regexp.MustCompile(pattern))
}

type regexNeedle struct{ re *regexp.Regexp }

// Find is conservative about ruling a match out:
// once eof is observed, a definite non-match (no leftmost match exists
// over the whole accumulated buffer) is reported as NoMatchPossible;
// before eof, this implementation always answers NeedMore rather than
// attempting to prove no future byte sequence could ever match — RE2's
// API doesn't expose partial-match information, so "might still match"
// is the only sound answer short of EOF.
func (n regexNeedle) Find(buf []byte, eof bool) Find {
	loc := n.re.FindSubmatchIndex(buf)
	if loc != nil {
		groups := make([][2]int, len(loc)/2)
		for i := range groups {
			groups[i] = [2]int{loc[2*i], loc[2*i+1]}
		}
		return Find{Kind: Match, Start: loc[0], End: loc[1], Groups: groups}
	}
	if eof {
		return Find{Kind: NoMatchPossible}
	}
	return Find{Kind: NeedMore}
}

// Eof matches only once eof is true and the buffer is empty; it consumes
// nothing. A non-empty buffer at eof is a definite non-match, which
// Expect surfaces as an error carrying the residual bytes.
func Eof() Needle { return eofNeedle{} }

type eofNeedle struct{}

func (eofNeedle) Find(buf []byte, eof bool) Find {
	if !eof {
		return Find{Kind: NeedMore}
	}
	if len(buf) == 0 {
		return Find{Kind: Match, Start: 0, End: 0, Groups: [][2]int{{0, 0}}}
	}
	return Find{Kind: NoMatchPossible}
}

// NBytes matches as soon as the buffer holds at least k bytes.
func NBytes(k int) Needle {
	if k < 0 {
		k = 0
	}
	return nbytesNeedle{k: k}
}

type nbytesNeedle struct{ k int }

func (n nbytesNeedle) Find(buf []byte, eof bool) Find {
	if len(buf) >= n.k {
		return Find{Kind: Match, Start: 0, End: n.k, Groups: [][2]int{{0, n.k}}}
	}
	if eof {
		return Find{Kind: NoMatchPossible}
	}
	return Find{Kind: NeedMore}
}

// Any folds a list of alternatives, returning the earliest match by End
// offset (ties broken by list order), NeedMore if no child matched but at
// least one might still, else NoMatchPossible.
func Any(alternatives ...Needle) Needle {
	return anyNeedle{children: alternatives}
}

type anyNeedle struct{ children []Needle }

func (n anyNeedle) Find(buf []byte, eof bool) Find {
	var best *Find
	anyNeedMore := false
	for _, child := range n.children {
		f := child.Find(buf, eof)
		switch f.Kind {
		case Match:
			if best == nil || f.End < best.End {
				fc := f
				best = &fc
			}
		case NeedMore:
			anyNeedMore = true
		case NoMatchPossible:
			// contributes nothing
		}
	}
	if best != nil {
		return *best
	}
	if anyNeedMore {
		return Find{Kind: NeedMore}
	}
	return Find{Kind: NoMatchPossible}
}
