package sanitize

import "testing"

func TestFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":            "report.pdf",
		"../../etc/passwd":      "etcpasswd",
		"my file (1).pdf":       "my_file_1_.pdf",
		"weird...tar":           "weird.tar",
		"":                      "file",
		"....":                  "file",
		"a__b___c.txt":          "a_b_c.txt",
		"семейное-фото.jpg":     "_-_.jpg",
		`back\slash\name.doc`:   "backslashname.doc",
	}
	for in, want := range cases {
		if got := Filename(in); got != want {
			t.Errorf("Filename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStorageKey(t *testing.T) {
	cases := map[string]string{
		"uploads/a.pdf":        "uploads/a.pdf",
		"/uploads//a.pdf":      "uploads/a.pdf",
		"../../secret":         "secret",
		`uploads\win\path.pdf`: "uploads/win/path.pdf",
		"":                     "",
	}
	for in, want := range cases {
		if got := StorageKey(in); got != want {
			t.Errorf("StorageKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidKeyPath(t *testing.T) {
	valid := []string{"uploads/123-abc.pdf", "converted/x.docx"}
	invalid := []string{"", "/uploads/a.pdf", "./a.pdf", "uploads/../secret", `..\\secret`}

	for _, k := range valid {
		if !ValidKeyPath(k) {
			t.Errorf("ValidKeyPath(%q) = false, want true", k)
		}
	}
	for _, k := range invalid {
		if ValidKeyPath(k) {
			t.Errorf("ValidKeyPath(%q) = true, want false", k)
		}
	}
}
