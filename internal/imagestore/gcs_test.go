package imagestore

import "testing"

func TestSplitGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "valid uri",
			uri:        "gs://my-bucket/receipts/2024/05/01/abc-receipt.jpg",
			wantBucket: "my-bucket",
			wantObject: "receipts/2024/05/01/abc-receipt.jpg",
		},
		{
			name:    "missing scheme",
			uri:     "my-bucket/receipt.jpg",
			wantErr: true,
		},
		{
			name:    "bucket only",
			uri:     "gs://my-bucket",
			wantErr: true,
		},
		{
			name:    "empty object",
			uri:     "gs://my-bucket/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := splitGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("splitGCSURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilenameFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/receipt.jpg", "receipt.jpg"},
		{"gs://bucket/receipt.png", "receipt.png"},
		{"gs://bucket", "bucket"},
	}

	for _, tt := range tests {
		if got := FilenameFromURI(tt.uri); got != tt.want {
			t.Errorf("FilenameFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestMimeTypeForURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://b/receipt.png", "image/png"},
		{"gs://b/receipt.PNG", "image/png"},
		{"gs://b/receipt.webp", "image/webp"},
		{"gs://b/receipt.heic", "image/heic"},
		{"gs://b/receipt.jpg", "image/jpeg"},
		{"gs://b/receipt", "image/jpeg"},
	}

	for _, tt := range tests {
		if got := MimeTypeForURI(tt.uri); got != tt.want {
			t.Errorf("MimeTypeForURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
