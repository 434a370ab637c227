package sapi

import (
	"bytes"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
)

// maxFormMemory bounds the in-memory part of a multipart submission.
const maxFormMemory = 32 << 20

// ParseForm decodes a form submission the way a host populates its parsed
// POST mapping: only POST bodies with a urlencoded or multipart content type
// are considered, file parts are dropped, and the result is never nil.
func ParseForm(method, contentType string, body []byte) url.Values {
	form := url.Values{}
	if method != http.MethodPost || len(body) == 0 || contentType == "" {
		return form
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return form
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		// ParseQuery keeps the pairs it could decode even when it fails.
		vals, _ := url.ParseQuery(string(body))
		for k, v := range vals {
			form[k] = v
		}
	case "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			return form
		}
		mf, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxFormMemory)
		if err != nil {
			return form
		}
		defer func() { _ = mf.RemoveAll() }()
		for k, v := range mf.Value {
			form[k] = append([]string(nil), v...)
		}
	}

	return form
}
