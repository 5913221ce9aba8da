package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"sort"

	"heysheet/internal/uploads"
)

// parseEntries flattens the request body into ordered entries. Multipart
// parts keep their submission order; urlencoded and JSON keys are sorted.
// A malformed JSON body yields no entries.
func parseEntries(r *http.Request) ([]uploads.Entry, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return parseMultipart(r)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(r.PostForm))
		for key := range r.PostForm {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		entries := make([]uploads.Entry, 0, len(keys))
		for _, key := range keys {
			values := r.PostForm[key]
			entries = append(entries, uploads.Entry{Name: key, Value: values[len(values)-1]})
		}
		return entries, nil
	default:
		return parseJSON(r.Body), nil
	}
}

func parseMultipart(r *http.Request) ([]uploads.Entry, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	var entries []uploads.Entry
	index := map[string]int{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, err
		}

		entry := uploads.Entry{Name: name}
		if fileName := part.FileName(); fileName != "" {
			contentType := part.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			entry.File = &uploads.File{
				FileName:    fileName,
				ContentType: contentType,
				Size:        int64(len(data)),
				Open: func() (io.ReadCloser, error) {
					return io.NopCloser(bytes.NewReader(data)), nil
				},
			}
		} else {
			entry.Value = string(data)
		}

		// Repeated names keep the first position and the last value.
		if i, ok := index[name]; ok {
			entries[i] = entry
			continue
		}
		index[name] = len(entries)
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseJSON(body io.Reader) []uploads.Entry {
	var data map[string]any
	if body == nil || json.NewDecoder(body).Decode(&data) != nil {
		return nil
	}
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	entries := make([]uploads.Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, uploads.Entry{Name: key, Value: data[key]})
	}
	return entries
}

// entryValues maps entries to the values checked by the field schema. Files
// count as present through their file name.
func entryValues(entries []uploads.Entry) map[string]any {
	values := make(map[string]any, len(entries))
	for _, e := range entries {
		if e.File != nil {
			values[e.Name] = e.File.FileName
			continue
		}
		values[e.Name] = e.Value
	}
	return values
}
