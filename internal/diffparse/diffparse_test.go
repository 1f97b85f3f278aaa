package diffparse

import "testing"

const sampleDiff = `diff --git a/greet.go b/greet.go
index 1111111..2222222 100644
--- a/greet.go
+++ b/greet.go
@@ -1,5 +1,5 @@
 package greet

-func Old() string {
-	return "old"
+func New() string {
+	return "new"
 }
diff --git a/new_file.go b/new_file.go
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/new_file.go
@@ -0,0 +1,2 @@
+package greet
+var Added = true
`

func TestParseClassifiesLinePairing(t *testing.T) {
	parsed, err := Parse(sampleDiff, nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(parsed.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(parsed.Files))
	}

	greet := parsed.Files[0]
	if greet.FilePath != "greet.go" {
		t.Errorf("file path = %q, want greet.go", greet.FilePath)
	}
	// The hunk reads -,-,+,+: only the second '-' is immediately
	// followed by a '+', so it alone becomes a modification; the first
	// '-' stays a deletion and the last '+' stays an addition.
	if len(greet.Modifications) != 1 {
		t.Fatalf("greet.go modifications = %d, want 1 (the one '-' directly followed by '+')", len(greet.Modifications))
	}
	if len(greet.Additions) != 1 || len(greet.Deletions) != 1 {
		t.Errorf("greet.go should have one unpaired add and one unpaired delete, got additions=%d deletions=%d",
			len(greet.Additions), len(greet.Deletions))
	}

	newFile := parsed.Files[1]
	if len(newFile.Additions) != 2 {
		t.Fatalf("new_file.go additions = %d, want 2", len(newFile.Additions))
	}
	if len(newFile.Modifications) != 0 {
		t.Errorf("new_file.go should have no modifications, got %d", len(newFile.Modifications))
	}
}

func TestParseSkipsUnparsableSectionButKeepsRest(t *testing.T) {
	// The hunk header announces three lines but only one follows, which
	// gitdiff rejects as a miscounted fragment.
	garbage := "diff --git a/broken b/broken\n--- a/broken\n+++ b/broken\n@@ -1,3 +1,3 @@\n-this hunk declares three lines but carries one\n"
	combined := garbage + sampleDiff

	parsed, err := Parse(combined, nil)
	if err != nil {
		t.Fatalf("Parse returned error even though one section was valid: %v", err)
	}
	if len(parsed.Files) != 2 {
		t.Errorf("got %d files, want 2 (garbage section skipped)", len(parsed.Files))
	}
}

func TestParseEmptyPayloadFails(t *testing.T) {
	if _, err := Parse("", nil); err == nil {
		t.Error("expected an error parsing an empty payload")
	}
}

func TestParseWhollyUnparsablePayloadFails(t *testing.T) {
	if _, err := Parse("not a diff at all\njust some text\n", nil); err == nil {
		t.Error("expected an error when nothing in the payload parses as a diff")
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"main.go":       "go",
		"app.py":        "python",
		"Component.tsx": "typescript",
		"Dockerfile":    "dockerfile",
		"README":        "unknown",
	}
	for path, want := range cases {
		if got := DetectLanguage(path); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", path, got, want)
		}
	}
}
