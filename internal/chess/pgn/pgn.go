// Package pgn converts session move history to and from PGN text.
package pgn

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/vitoskycl/web-chess/internal/chess"
)

const lineWidth = 79

// Header carries the tag values that are not derived from the moves.
// Empty values are written as "?".
type Header struct {
	Event string
	Site  string
	Date  time.Time
	Round string
	White string
	Black string
}

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func book() *opening.BookECO {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	return ecoBook
}

// Encode renders line as a single PGN game. SetUp/FEN tags are written when
// the line does not start from the standard position.
func Encode(line chess.Line, h Header) (string, error) {
	result, method := line.Outcome()
	moves := line.Moves()

	sans := make([]string, len(moves))
	for i, m := range moves {
		san, err := line.PositionBefore(i).SAN(m)
		if err != nil {
			return "", fmt.Errorf("encode move %d (%s): %w", i+1, m, err)
		}
		sans[i] = san
	}

	var b strings.Builder
	writeTag(&b, "Event", h.Event)
	writeTag(&b, "Site", h.Site)
	writeTag(&b, "Date", formatDate(h.Date))
	writeTag(&b, "Round", h.Round)
	writeTag(&b, "White", h.White)
	writeTag(&b, "Black", h.Black)
	writeTag(&b, "Result", result)

	base := line.Base()
	if base.String() != chess.StartFEN {
		writeTag(&b, "SetUp", "1")
		writeTag(&b, "FEN", base.String())
	} else if code, title := Opening(line); code != "" {
		writeTag(&b, "ECO", code)
		writeTag(&b, "Opening", title)
	}
	if method != "" {
		writeTag(&b, "Termination", strings.ReplaceAll(method, "_", " "))
	}
	b.WriteString("\n")

	var tokens []string
	for i, san := range sans {
		pos := line.PositionBefore(i)
		number := strconv.Itoa(pos.FullmoveNumber())
		switch {
		case pos.Turn() == "w":
			tokens = append(tokens, number+".", san)
		case i == 0:
			tokens = append(tokens, number+"...", san)
		default:
			tokens = append(tokens, san)
		}
	}
	tokens = append(tokens, result)
	b.WriteString(wrap(tokens))
	b.WriteString("\n")
	return b.String(), nil
}

func writeTag(b *strings.Builder, name, value string) {
	value = sanitize(value)
	if value == "" {
		value = "?"
	}
	fmt.Fprintf(b, "[%s \"%s\"]\n", name, value)
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "????.??.??"
	}
	return fmt.Sprintf("%04d.%02d.%02d", t.Year(), int(t.Month()), t.Day())
}

func wrap(tokens []string) string {
	var b strings.Builder
	width := 0
	for i, tok := range tokens {
		if i > 0 {
			if width+1+len(tok) > lineWidth {
				b.WriteString("\n")
				width = 0
			} else {
				b.WriteString(" ")
				width++
			}
		}
		b.WriteString(tok)
		width += len(tok)
	}
	return b.String()
}

// Opening names the ECO opening the line follows. Lines that do not start
// from the standard position, or that the book does not know, return "".
func Opening(line chess.Line) (code, title string) {
	moves := line.Moves()
	if len(moves) == 0 || line.Base().String() != chess.StartFEN {
		return "", ""
	}
	g := nchess.NewGame()
	for _, m := range moves {
		if err := g.PushNotationMove(m.String(), nchess.UCINotation{}, nil); err != nil {
			return "", ""
		}
	}
	bk := book()
	if bk == nil {
		return "", ""
	}
	if eco := bk.Find(g.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

var (
	tagLine     = regexp.MustCompile(`^\s*\[(\w+)\s+"((?:[^"\\]|\\.)*)"\s*\]\s*$`)
	commentText = regexp.MustCompile(`\{[^}]*\}|;[^\n]*`)
	moveNumber  = regexp.MustCompile(`^\d+\.+$`)
)

// Decode reads the first game in text and returns the position after its
// last move.
func Decode(text string) (chess.Position, error) {
	if strings.TrimSpace(text) == "" {
		return chess.Position{}, fmt.Errorf("%w: no content", chess.ErrEmptyGameRecord)
	}

	tags, movetext, game := split(text)
	fenTag, hasFEN := tags["FEN"]
	if !hasMoveTokens(movetext) {
		if !hasFEN {
			return chess.Position{}, fmt.Errorf("%w: no moves and no FEN tag", chess.ErrEmptyGameRecord)
		}
		pos, err := chess.Parse(fenTag)
		if err != nil {
			return chess.Position{}, fmt.Errorf("%w: FEN tag: %v", chess.ErrMalformedGameRecord, err)
		}
		return pos, nil
	}

	opt, err := nchess.PGN(strings.NewReader(game))
	if err != nil {
		return chess.Position{}, fmt.Errorf("%w: %v", chess.ErrMalformedGameRecord, err)
	}
	g := nchess.NewGame(opt)
	if len(g.Moves()) == 0 {
		return chess.Position{}, fmt.Errorf("%w: movetext has no playable moves", chess.ErrMalformedGameRecord)
	}
	pos, err := chess.Parse(g.Position().String())
	if err != nil {
		return chess.Position{}, fmt.Errorf("%w: final position: %v", chess.ErrMalformedGameRecord, err)
	}
	return pos, nil
}

// split isolates the first game in text and returns its tags, its movetext
// and the game's full text.
func split(text string) (map[string]string, string, string) {
	tags := map[string]string{}
	var body, game []string
	inBody := false
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := tagLine.FindStringSubmatch(line); m != nil {
			if inBody {
				// Next game's tags.
				break
			}
			tags[m[1]] = m[2]
			game = append(game, line)
			continue
		}
		if strings.TrimSpace(line) != "" {
			inBody = true
		}
		body = append(body, line)
		game = append(game, line)
	}
	return tags, strings.Join(body, "\n"), strings.Join(game, "\n") + "\n"
}

func hasMoveTokens(movetext string) bool {
	cleaned := commentText.ReplaceAllString(movetext, " ")
	for _, tok := range strings.Fields(cleaned) {
		switch {
		case tok == "*", tok == "1-0", tok == "0-1", tok == "1/2-1/2":
		case moveNumber.MatchString(tok):
		case strings.HasPrefix(tok, "$"):
		default:
			return true
		}
	}
	return false
}
