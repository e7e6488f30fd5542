package cache

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func response(header http.Header, body string) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestResponseToEntry(t *testing.T) {
	lastMod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		resp        *http.Response
		maxBytes    int64
		wantErr     error
		wantData    string
		wantETag    string
		wantLastMod time.Time
	}{
		{
			name: "shard with validators",
			resp: response(http.Header{
				"Last-Modified": []string{lastMod.Format(http.TimeFormat)},
				"Etag":          []string{`"5e5c-abc"`},
			}, `{"children": ["AB"]}`),
			wantData:    `{"children": ["AB"]}`,
			wantETag:    `"5e5c-abc"`,
			wantLastMod: lastMod,
		},
		{
			name:     "no validators",
			resp:     response(nil, `{"CDEF": {"t": "B738"}}`),
			wantData: `{"CDEF": {"t": "B738"}}`,
		},
		{
			name:     "unparseable last-modified ignored",
			resp:     response(http.Header{"Last-Modified": []string{"yesterday"}}, `{}`),
			wantData: `{}`,
		},
		{
			name:     "body at limit",
			resp:     response(nil, `{"A":1}`),
			maxBytes: 7,
			wantData: `{"A":1}`,
		},
		{
			name:     "body over limit",
			resp:     response(nil, `{"A":12}`),
			maxBytes: 7,
			wantErr:  ErrDocumentTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(tt.resp, tt.maxBytes)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResponseToEntry() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResponseToEntry() error = %v", err)
			}

			if string(entry.Data) != tt.wantData {
				t.Errorf("Data = %s, want %s", entry.Data, tt.wantData)
			}
			if entry.ETag != tt.wantETag {
				t.Errorf("ETag = %v, want %v", entry.ETag, tt.wantETag)
			}
			if !entry.LastModified.Equal(tt.wantLastMod) {
				t.Errorf("LastModified = %v, want %v", entry.LastModified, tt.wantLastMod)
			}
			if entry.CachedAt.IsZero() {
				t.Error("CachedAt was not set")
			}
		})
	}
}

func TestResponseToEntry_Nil(t *testing.T) {
	if _, err := ResponseToEntry(nil, 0); err == nil {
		t.Error("ResponseToEntry(nil) should fail")
	}
}
