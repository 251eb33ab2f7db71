package config

import (
	"os"
	"path/filepath"
	"testing"
)

type contracts struct {
	EntryPoint string `ini:"entrypoint"`
	Factory    string `ini:"factory"`
	Gas        uint64 `ini:"deploymentgas"`
	Ignored    string `ini:"-"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    contracts
		wantErr bool
	}{
		{
			name: "no section",
			data: "entrypoint=0x01\nfactory=0x02\ndeploymentgas=3000000\n",
			want: contracts{EntryPoint: "0x01", Factory: "0x02", Gas: 3_000_000, Ignored: "keep"},
		},
		{
			name: "sections are flattened",
			data: "[Contracts]\nentrypoint=0x0a\n[Gas]\ndeploymentgas=42\n",
			want: contracts{EntryPoint: "0x0a", Gas: 42, Ignored: "keep"},
		},
		{
			name:    "malformed",
			data:    "[Contracts\nfactory=0x02\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		c := contracts{Ignored: "keep"}
		err := Parse([]byte(tt.data), &c)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: wanted error %t, got %v", tt.name, tt.wantErr, err)
		}
		if err == nil && c != tt.want {
			t.Fatalf("%s: wanted %+v, got %+v", tt.name, tt.want, c)
		}
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.conf")
	if err := os.WriteFile(path, []byte("factory = 0xfa\n"), 0600); err != nil {
		t.Fatalf("error writing config file: %v", err)
	}
	var c contracts
	if err := Parse(path, &c); err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if c.Factory != "0xfa" {
		t.Fatalf("wrong factory %q", c.Factory)
	}
	opts, err := Options(path)
	if err != nil {
		t.Fatalf("Options error: %v", err)
	}
	if len(opts) != 1 || opts["factory"] != "0xfa" {
		t.Fatalf("wrong options %v", opts)
	}
}

func TestOptionsMapToINIData(t *testing.T) {
	b := OptionsMapToINIData(map[string]string{"b": "2", "a": "1"})
	if string(b) != "a=1\nb=2\n" {
		t.Fatalf("wrong ini data %q", b)
	}
}
