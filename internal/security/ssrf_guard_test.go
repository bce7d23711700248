package security

import (
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"通常のhttps URL", "https://example.com/feed.xml", false},
		{"通常のhttp URL", "http://example.com/rss", false},
		{"空URL", "", true},
		{"不正なURL", "://bad", true},
		{"ftpスキーム", "ftp://example.com/feed", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"ホストなし", "https:///path", true},
		{"localhost", "http://localhost/feed", true},
		{"localhost大文字", "http://LOCALHOST/feed", true},
		{"ループバックIP", "http://127.0.0.1/feed", true},
		{"プライベートIP 10系", "http://10.0.0.5/feed", true},
		{"プライベートIP 172系", "http://172.16.1.1/feed", true},
		{"プライベートIP 192系", "http://192.168.1.1/feed", true},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/", true},
		{"カレントネットワーク", "http://0.0.0.0/feed", true},
		{"IPv6ループバック", "http://[::1]/feed", true},
		{"IPv6リンクローカル", "http://[fe80::1]/feed", true},
		{"パブリックIP", "http://93.184.216.34/feed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(10*time.Second, 5*1024*1024)
	if client == nil {
		t.Fatal("NewSafeClient returned nil")
	}
}

// compile-time interface check
var _ SSRFGuardService = (*ssrfGuard)(nil)
