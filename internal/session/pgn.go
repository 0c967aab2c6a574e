package session

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/park285/cheese-chess-server/internal/chess"
)

const (
	DefaultEvent = "Casual Game"
	pgnLineWidth = 80
)

// Header holds the tag pairs of an exported record. Empty fields get the PGN
// placeholders ("?", "????.??.??", "*").
type Header struct {
	Event  string
	Site   string
	Date   string
	Round  string
	White  string
	Black  string
	Result string
}

// ExportRecord renders the game as PGN with the given player labels and result token.
// An empty result token falls back to the session's own result.
func (s *GameSession) ExportRecord(white, black, result string) string {
	if strings.TrimSpace(result) == "" {
		result = s.result.PGN()
	}
	return s.ExportWithHeader(Header{White: white, Black: black, Result: result})
}

// ExportWithHeader replays the history from the start position and writes the seven tag
// roster, SetUp/FEN for a non-standard start, and the movetext. Replay stops at the
// first ply that is not legal in the replayed position.
func (s *GameSession) ExportWithHeader(h Header) string {
	h = h.withDefaults()

	var sb strings.Builder
	writeTag(&sb, "Event", h.Event)
	writeTag(&sb, "Site", h.Site)
	writeTag(&sb, "Date", h.Date)
	writeTag(&sb, "Round", h.Round)
	writeTag(&sb, "White", h.White)
	writeTag(&sb, "Black", h.Black)
	writeTag(&sb, "Result", h.Result)
	if !s.start.IsStandardStart() {
		writeTag(&sb, "SetUp", "1")
		writeTag(&sb, "FEN", s.start.FEN())
	}
	sb.WriteByte('\n')

	tokens := movetext(s.start, s.history)
	tokens = append(tokens, h.Result)
	wrap(&sb, tokens, pgnLineWidth)
	sb.WriteByte('\n')
	return sb.String()
}

func (h Header) withDefaults() Header {
	def := func(v, fallback string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return fallback
		}
		return v
	}
	h.Event = def(h.Event, DefaultEvent)
	h.Site = def(h.Site, "?")
	h.Date = def(h.Date, "????.??.??")
	h.Round = def(h.Round, "?")
	h.White = norm.NFC.String(def(h.White, "?"))
	h.Black = norm.NFC.String(def(h.Black, "?"))
	h.Result = def(h.Result, "*")
	return h
}

var tagEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", " ", "\r", " ")

func writeTag(sb *strings.Builder, name, value string) {
	fmt.Fprintf(sb, "[%s \"%s\"]\n", name, tagEscaper.Replace(value))
}

func movetext(start chess.Board, plies []Ply) []string {
	var tokens []string
	b := start
	for i, p := range plies {
		m, ok := chess.IsLegal(b, p.Move)
		if !ok {
			break
		}
		switch {
		case b.Turn() == chess.White:
			tokens = append(tokens, fmt.Sprintf("%d.", b.FullmoveNumber()))
		case i == 0:
			tokens = append(tokens, fmt.Sprintf("%d...", b.FullmoveNumber()))
		}
		tokens = append(tokens, chess.SAN(b, m))
		b = b.Apply(m)
	}
	return tokens
}

func wrap(sb *strings.Builder, tokens []string, width int) {
	col := 0
	for _, tok := range tokens {
		switch {
		case col == 0:
		case col+1+len(tok) > width:
			sb.WriteByte('\n')
			col = 0
		default:
			sb.WriteByte(' ')
			col++
		}
		sb.WriteString(tok)
		col += len(tok)
	}
}
