package detect

import (
	"os"
	"path/filepath"
	"testing"
)

func testTokenizer(t *testing.T) *wordPieceTokenizer {
	t.Helper()
	vocab := "[PAD]\n[UNK]\n[CLS]\n[SEP]\ncall\njane\nat\n##ane\nx\nexample\n##com\n.\n"
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte(vocab), 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}
	tok, err := loadWordPieceTokenizer(path)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	return tok
}

func TestEncodeOffsetsMapBack(t *testing.T) {
	tok := testTokenizer(t)
	text := "call jane"
	ids, attn, offsets := tok.encode(text, 16)
	if len(ids) != 16 || len(attn) != 16 || len(offsets) != 16 {
		t.Fatalf("lengths: ids=%d attn=%d offsets=%d", len(ids), len(attn), len(offsets))
	}
	// [CLS] call jane [SEP]
	if attn[0] != 1 || attn[3] != 1 || attn[4] != 0 {
		t.Fatalf("attention mask wrong: %v", attn[:6])
	}
	if offsets[0].Start != -1 {
		t.Fatal("CLS should carry sentinel offset")
	}
	if got := text[offsets[1].Start:offsets[1].End]; got != "call" {
		t.Fatalf("token 1 maps to %q", got)
	}
	if got := text[offsets[2].Start:offsets[2].End]; got != "jane" {
		t.Fatalf("token 2 maps to %q", got)
	}
}

func TestEncodeSubwordOffsets(t *testing.T) {
	tok := testTokenizer(t)
	// "xane" is not in vocab and decomposes as x + ##ane.
	text := "jane xane"
	_, _, offsets := tok.encode(text, 16)
	// tokens: CLS, jane, x, ##ane, SEP
	if got := text[offsets[2].Start:offsets[2].End]; got != "x" {
		t.Fatalf("first piece maps to %q", got)
	}
	if got := text[offsets[3].Start:offsets[3].End]; got != "ane" {
		t.Fatalf("continuation piece maps to %q", got)
	}
	if offsets[3].Start != 6 || offsets[3].End != 9 {
		t.Fatalf("continuation offsets = %+v", offsets[3])
	}
}

func TestEncodeUnknownWord(t *testing.T) {
	tok := testTokenizer(t)
	ids, _, offsets := tok.encode("zzzz", 8)
	if ids[1] != tok.unkID {
		t.Fatalf("unknown word id = %d, want UNK %d", ids[1], tok.unkID)
	}
	if offsets[1].Start != 0 || offsets[1].End != 4 {
		t.Fatalf("UNK should cover whole word, got %+v", offsets[1])
	}
}

func TestSplitWordsWithOffsets(t *testing.T) {
	spans := splitWordsWithOffsets("  a bc\nd ")
	if len(spans) != 3 {
		t.Fatalf("got %d words", len(spans))
	}
	if spans[1].text != "bc" || spans[1].start != 4 || spans[1].end != 6 {
		t.Fatalf("middle word = %+v", spans[1])
	}
	if spans := splitWordsWithOffsets(""); spans != nil {
		t.Fatal("empty text should yield nil")
	}
}
