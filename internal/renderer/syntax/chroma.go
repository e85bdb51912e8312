package syntax

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// DocumentNode is the type of the root node of a TokenTree.
const DocumentNode = "document"

const (
	// resumeState is the entry state of the resumable lexer. Its only rule
	// matches the empty string and installs the saved lexer stack.
	resumeState = "bigtext:resume"

	// checkpointSpacing is the minimum distance between saved lexer states.
	checkpointSpacing = 512
	// restartMargin keeps a restart point clear of the edit so that rules
	// looking ahead of their match still see unchanged text.
	restartMargin = 256
	// tailMargin is the part of a lex window in which lexer states are not
	// trusted, since the text is cut off after it.
	tailMargin = 1024
	// windowSize is how far past the edit the first lex window reaches.
	windowSize = 4096
)

var errorType = chroma.Error.String()

// ChromaParser tokenizes documents with a chroma lexer.
//
// Regex lexers are incremental: the parser saves the lexer stack every few
// hundred bytes, restarts at the last saved state before an edit and stops
// as soon as the stack matches a saved state of the previous tree at the
// same offset past the edit. Other lexers relex the whole input.
type ChromaParser struct {
	name  string
	full  chroma.Lexer
	lexer *chroma.RegexLexer // nil when the lexer cannot be resumed

	mu  sync.Mutex
	run *lexRun
}

// NewChromaParser returns a parser for the named language (for example
// "json", "javascript" or "go").
func NewChromaParser(language string) (*ChromaParser, error) {
	l := lexers.Get(language)
	if l == nil {
		return nil, fmt.Errorf("%q: %w", language, ErrUnknownLanguage)
	}
	return newChromaParser(l)
}

// NewChromaParserForFile returns a parser chosen by file name.
func NewChromaParserForFile(filename string) (*ChromaParser, error) {
	l := lexers.Match(filename)
	if l == nil {
		return nil, fmt.Errorf("file %q: %w", filename, ErrUnknownLanguage)
	}
	return newChromaParser(l)
}

func newChromaParser(l chroma.Lexer) (*ChromaParser, error) {
	p := &ChromaParser{name: l.Config().Name, full: chroma.Coalesce(l)}
	if rl, ok := l.(*chroma.RegexLexer); ok {
		lexer, err := p.resumable(rl)
		if err != nil {
			return nil, err
		}
		p.lexer = lexer
	}
	return p, nil
}

// resumable copies the rules of rl into a lexer that reports every match to
// the parser and can start from a saved stack.
func (p *ChromaParser) resumable(rl *chroma.RegexLexer) (*chroma.RegexLexer, error) {
	src, err := rl.Rules()
	if err != nil {
		return nil, fmt.Errorf("%s rules: %w", p.name, err)
	}
	rules := src.Clone()
	observe := chroma.MutatorFunc(p.observe)
	for _, rs := range rules {
		for i := range rs {
			switch m := rs[i].Mutator.(type) {
			case chroma.LexerMutator:
				// include and combined rewrite the rule table when it is
				// compiled; the rules they pull in are wrapped already.
			case nil:
				rs[i].Mutator = observe
			default:
				rs[i].Mutator = chroma.Mutators(m, observe)
			}
		}
	}
	rules[resumeState] = []chroma.Rule{{
		Pattern: "",
		Type:    chroma.EmitterFunc(p.emitResume),
		Mutator: chroma.MutatorFunc(p.resume),
	}}
	cfg := *rl.Config()
	lexer, err := chroma.NewLexer(&cfg, func() chroma.Rules { return rules })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	lexer.SetRegistry(lexers.GlobalLexerRegistry)
	return lexer, nil
}

// Language returns the lexer name.
func (p *ChromaParser) Language() string {
	return p.name
}

// Parse implements Parser. A tree from this parser that has seen edits is
// relexed from before the first edit until the lexer state resyncs; an
// unedited tree is returned as is.
func (p *ChromaParser) Parse(in Input, old Tree) (Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lexer == nil {
		return p.parseFull(in)
	}
	prev, ok := old.(*TokenTree)
	switch {
	case !ok || prev == nil || prev.owner != p || prev.length != in.Len:
		return p.reparse(in, nil)
	case !prev.dirty:
		return prev, nil
	default:
		return p.reparse(in, prev)
	}
}

func (p *ChromaParser) parseFull(in Input) (*TokenTree, error) {
	src := in.Bytes()
	it, err := p.full.Tokenise(nil, string(src))
	if err != nil {
		return nil, fmt.Errorf("tokenise: %w", err)
	}
	t := &TokenTree{length: len(src)}
	pos := 0
	for tok := it(); tok != chroma.EOF; tok = it() {
		end := min(pos+len(tok.Value), len(src))
		t.tokens = appendToken(t.tokens, token{typ: tok.Type.String(), start: pos, end: end})
		pos = end
	}
	t.firstError = firstError(t.tokens)
	return t, nil
}

// reparse lexes in, reusing the unchanged parts of prev when it is not nil.
func (p *ChromaParser) reparse(in Input, prev *TokenTree) (*TokenTree, error) {
	from := checkpoint{stack: []string{"root"}}
	keep := 0
	if prev != nil {
		limit := prev.lo - restartMargin
		if prev.firstError >= 0 {
			limit = min(limit, prev.firstError)
		}
		keep = sort.Search(len(prev.checkpoints), func(i int) bool {
			return prev.checkpoints[i].pos > limit
		})
		if keep > 0 {
			from = prev.checkpoints[keep-1]
		}
	}

	r := &lexRun{from: from, syncFrom: in.Len}
	if prev != nil {
		r.syncFrom = prev.hi
		r.old = prev
	}
	toks, cps, end, err := p.lex(in, r)
	if err != nil {
		return nil, err
	}

	t := &TokenTree{length: in.Len, owner: p}
	if prev == nil {
		t.tokens, t.checkpoints = toks, cps
		t.firstError = firstError(t.tokens)
		return t, nil
	}
	t.tokens = make([]token, 0, len(prev.tokens)+len(toks))
	t.tokens = appendTokensBefore(t.tokens, prev.tokens, from.pos)
	for _, tok := range toks {
		t.tokens = appendToken(t.tokens, tok)
	}
	t.tokens = appendTokensAfter(t.tokens, prev.tokens, end)

	t.checkpoints = make([]checkpoint, 0, len(prev.checkpoints)+len(cps))
	t.checkpoints = append(t.checkpoints, prev.checkpoints[:keep]...)
	t.checkpoints = append(t.checkpoints, cps...)
	if end < in.Len {
		i := sort.Search(len(prev.checkpoints), func(i int) bool {
			return prev.checkpoints[i].pos >= end
		})
		t.checkpoints = append(t.checkpoints, prev.checkpoints[i:]...)
	}
	t.firstError = firstError(t.tokens)
	return t, nil
}

// lex runs the resumable lexer over growing windows of in, starting from
// r.from, until it resyncs with r.old or reaches the end of input. It
// returns the tokens and checkpoints it produced and the offset they end
// at.
func (p *ChromaParser) lex(in Input, r *lexRun) ([]token, []checkpoint, int, error) {
	ext := windowSize
	for {
		to := min(in.Len, max(r.from.pos, r.syncFrom)+ext)
		r.reset(to, in.Len)
		text := readRange(in, r.from.pos, to)
		toks, err := p.lexWindow(r, string(text))
		if err != nil {
			return nil, nil, 0, err
		}
		switch {
		case r.synced:
			return toks, r.checkpoints, r.syncPos, nil
		case r.atEnd:
			return toks, r.checkpoints, in.Len, nil
		}
		ext *= 2
	}
}

// lexWindow lexes text, which starts at offset r.from.pos of the input.
func (p *ChromaParser) lexWindow(r *lexRun, text string) (toks []token, err error) {
	p.run = r
	defer func() {
		p.run = nil
		if v := recover(); v != nil {
			err = fmt.Errorf("%s lexer: %v", p.name, v)
		}
	}()
	it, err := p.lexer.Tokenise(&chroma.TokeniseOptions{State: resumeState}, text)
	if err != nil {
		return nil, fmt.Errorf("tokenise: %w", err)
	}
	pos := r.from.pos
	limit := r.from.pos + len(text)
	for tok := it(); tok != chroma.EOF; tok = it() {
		end := min(pos+len(tok.Value), limit)
		if tok.Type == chroma.Error {
			r.sawError(pos)
		}
		toks = appendToken(toks, token{typ: tok.Type.String(), start: pos, end: end})
		pos = end
	}
	return toks, nil
}

// lexRun is the state of one lex window. The resumable lexer calls back
// into it through the parser's mutators.
type lexRun struct {
	from     checkpoint
	syncFrom int
	old      *TokenTree

	top       *chroma.LexerState
	lastStack []string
	recovered bool

	atEnd       bool
	safeLimit   int
	noSync      bool
	lastSaved   int
	checkpoints []checkpoint
	synced      bool
	syncPos     int
}

func (r *lexRun) reset(to, length int) {
	r.top = nil
	r.lastStack = nil
	r.recovered = false
	r.atEnd = to == length
	r.safeLimit = to
	if !r.atEnd {
		r.safeLimit = to - tailMargin
	}
	r.noSync = false
	r.lastSaved = r.from.pos
	r.checkpoints = nil
	r.synced = false
	r.syncPos = 0
}

// sawError notes an error token at pos. An error past the edit that the
// previous tree did not have may come from the window cutting a token
// short, so the window may not resync after it.
func (r *lexRun) sawError(pos int) {
	if r.atEnd || r.old == nil || pos < r.syncFrom {
		return
	}
	if !r.old.errorAt(pos) {
		r.noSync = true
	}
}

// resume installs the saved stack the first time the lexer enters the
// resume state. Later entries happen when no rule matched a line break;
// they replay chroma's recovery for a lexer started in "root".
func (p *ChromaParser) resume(s *chroma.LexerState) error {
	r := p.run
	if r.top == nil {
		r.top = s
		s.Stack = slices.Clone(r.from.stack)
		r.lastStack = s.Stack
		return nil
	}
	if n := len(r.lastStack); n > 0 && r.lastStack[n-1] == "root" {
		s.Pos++
		s.Stack = r.lastStack
		r.recovered = true
		return nil
	}
	s.Stack = []string{"root"}
	r.lastStack = s.Stack
	return nil
}

func (p *ChromaParser) emitResume(_ []string, _ *chroma.LexerState) chroma.Iterator {
	if r := p.run; r.recovered {
		r.recovered = false
		return chroma.Literator(chroma.Token{Type: chroma.Error, Value: "\n"})
	}
	return chroma.Literator()
}

// observe runs after every match of the top level lexer. It saves
// checkpoints and stops the lexer once its state equals a checkpoint of
// the previous tree.
func (p *ChromaParser) observe(s *chroma.LexerState) error {
	r := p.run
	if r == nil || s != r.top || len(s.Stack) == 0 {
		return nil
	}
	r.lastStack = s.Stack
	pos := r.from.pos + s.Pos
	if pos > r.safeLimit {
		return nil
	}
	if r.old != nil && !r.noSync && pos >= r.syncFrom {
		if c, ok := r.old.checkpointAt(pos); ok && slices.Equal(c.stack, s.Stack) {
			r.synced, r.syncPos = true, pos
			s.Pos = len(s.Text)
			return nil
		}
	}
	if pos-r.lastSaved >= checkpointSpacing {
		r.checkpoints = append(r.checkpoints, checkpoint{pos: pos, stack: slices.Clone(s.Stack)})
		r.lastSaved = pos
	}
	return nil
}

// TokenTree is a flat syntax tree: a document node whose children are
// lexer tokens in document order.
type TokenTree struct {
	tokens []token
	length int

	owner       *ChromaParser
	checkpoints []checkpoint
	firstError  int // start of the first error token, or -1

	// dirty marks edits since the last parse; [lo, hi) covers them in
	// current coordinates.
	dirty  bool
	lo, hi int
}

type token struct {
	typ        string
	start, end int
}

func (t token) Type() string { return t.typ }
func (t token) StartByte() int { return t.start }
func (t token) EndByte() int { return t.end }
func (t token) ChildCount() int { return 0 }
func (t token) Child(int) Node { return nil }

// checkpoint is the lexer stack after a match ending at pos.
type checkpoint struct {
	pos   int
	stack []string
}

type documentNode struct {
	t *TokenTree
}

func (d documentNode) Type() string { return DocumentNode }
func (d documentNode) StartByte() int { return 0 }
func (d documentNode) EndByte() int { return d.t.length }
func (d documentNode) ChildCount() int { return len(d.t.tokens) }
func (d documentNode) Child(i int) Node {
	if i < 0 || i >= len(d.t.tokens) {
		return nil
	}
	return d.t.tokens[i]
}

// Root implements Tree.
func (t *TokenTree) Root() Node {
	return documentNode{t: t}
}

// Len returns the number of tokens.
func (t *TokenTree) Len() int {
	return len(t.tokens)
}

// Edit implements Tree. Tokens after the edit shift; a token containing an
// insertion grows; tokens inside a deletion shrink or disappear.
func (t *TokenTree) Edit(e InputEdit) {
	delta := e.NewEndByte - e.OldEndByte
	out := t.tokens[:0]
	for _, tok := range t.tokens {
		switch {
		case tok.end <= e.StartByte:
		case tok.start >= e.OldEndByte:
			tok.start += delta
			tok.end += delta
		default:
			if tok.start >= e.StartByte {
				tok.start = e.NewEndByte
			}
			if tok.end > e.OldEndByte {
				tok.end += delta
			} else {
				tok.end = e.StartByte
			}
		}
		if tok.start < tok.end {
			out = append(out, tok)
		}
	}
	t.tokens = out

	cps := t.checkpoints[:0]
	for _, c := range t.checkpoints {
		switch {
		case c.pos <= e.StartByte:
		case c.pos >= e.OldEndByte:
			c.pos += delta
		default:
			continue
		}
		cps = append(cps, c)
	}
	t.checkpoints = cps

	if t.firstError > e.StartByte {
		t.firstError = editPos(t.firstError, e)
		if t.firstError > e.StartByte && t.firstError <= e.NewEndByte {
			t.firstError = e.StartByte
		}
	}
	if t.dirty {
		t.lo = min(editPos(t.lo, e), e.StartByte)
		t.hi = max(editPos(t.hi, e), e.NewEndByte)
	} else {
		t.dirty, t.lo, t.hi = true, e.StartByte, e.NewEndByte
	}
	t.length += delta
}

// editPos maps offset x across e.
func editPos(x int, e InputEdit) int {
	switch {
	case x <= e.StartByte:
		return x
	case x >= e.OldEndByte:
		return x + e.NewEndByte - e.OldEndByte
	default:
		return e.NewEndByte
	}
}

// tokenIndex returns the index of the first token ending after pos.
func (t *TokenTree) tokenIndex(pos int) int {
	return sort.Search(len(t.tokens), func(i int) bool { return t.tokens[i].end > pos })
}

func (t *TokenTree) errorAt(pos int) bool {
	i := t.tokenIndex(pos)
	return i < len(t.tokens) && t.tokens[i].start <= pos && t.tokens[i].typ == errorType
}

func (t *TokenTree) checkpointAt(pos int) (checkpoint, bool) {
	i := sort.Search(len(t.checkpoints), func(i int) bool { return t.checkpoints[i].pos >= pos })
	if i < len(t.checkpoints) && t.checkpoints[i].pos == pos {
		return t.checkpoints[i], true
	}
	return checkpoint{}, false
}

// appendToken appends t to dst, merging it into the last token when both
// have the same type and touch.
func appendToken(dst []token, t token) []token {
	if t.start >= t.end {
		return dst
	}
	if n := len(dst); n > 0 && dst[n-1].typ == t.typ && dst[n-1].end == t.start {
		dst[n-1].end = t.end
		return dst
	}
	return append(dst, t)
}

// appendTokensBefore appends the part of src before pos.
func appendTokensBefore(dst, src []token, pos int) []token {
	for _, tok := range src {
		if tok.start >= pos {
			break
		}
		tok.end = min(tok.end, pos)
		dst = appendToken(dst, tok)
	}
	return dst
}

// appendTokensAfter appends the part of src at or after pos.
func appendTokensAfter(dst, src []token, pos int) []token {
	i := sort.Search(len(src), func(i int) bool { return src[i].end > pos })
	for _, tok := range src[i:] {
		tok.start = max(tok.start, pos)
		dst = appendToken(dst, tok)
	}
	return dst
}

func firstError(tokens []token) int {
	for _, tok := range tokens {
		if tok.typ == errorType {
			return tok.start
		}
	}
	return -1
}

// readRange returns the normalized bytes [from, to) of in.
func readRange(in Input, from, to int) []byte {
	out := make([]byte, 0, to-from)
	for off := from; off < to; {
		b := in.Read(off)
		if len(b) == 0 {
			break
		}
		b = b[:min(len(b), to-off)]
		out = append(out, b...)
		off += len(b)
	}
	return out
}
