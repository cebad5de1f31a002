package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"geo-challenge/internal/model"
	"geo-challenge/internal/service"
)

// multipartMemory is how much of a multipart body is kept in memory.
const multipartMemory = 8 << 20

var errBoundaryFormat = errors.New("unrecognised boundary encoding")

// ParseBoundary converts any accepted wire encoding into the canonical
// polygon:
//
//   - GeoJSON Polygon, or a Feature wrapping one ([lng, lat] positions)
//   - {"rings": [[{"lat": .., "lng": ..}, ...], ...]}
//   - a single ring as [[lat, lng], ...] or [{"lat": .., "lng": ..}, ...]
//   - a JSON string holding any of the above
func ParseBoundary(raw json.RawMessage) (model.Polygon, error) {
	return parseBoundary(raw, true)
}

func parseBoundary(raw json.RawMessage, allowString bool) (model.Polygon, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.Polygon{}, errors.New("boundary is required")
	}

	switch raw[0] {
	case '"':
		if !allowString {
			return model.Polygon{}, errBoundaryFormat
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.Polygon{}, err
		}
		return parseBoundary(json.RawMessage(s), false)
	case '{':
		return parseBoundaryObject(raw)
	case '[':
		ring, err := parseRing(raw)
		if err != nil {
			return model.Polygon{}, err
		}
		return model.Polygon{Rings: []model.Ring{ring}}, nil
	default:
		return model.Polygon{}, errBoundaryFormat
	}
}

func parseBoundaryObject(raw json.RawMessage) (model.Polygon, error) {
	var obj struct {
		Type        string          `json:"type"`
		Coordinates [][][]float64   `json:"coordinates"`
		Geometry    json.RawMessage `json:"geometry"`
		Rings       []model.Ring    `json:"rings"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return model.Polygon{}, err
	}

	switch obj.Type {
	case "Polygon":
		p := model.Polygon{Rings: make([]model.Ring, 0, len(obj.Coordinates))}
		for i, positions := range obj.Coordinates {
			ring := make(model.Ring, 0, len(positions))
			for j, pos := range positions {
				if len(pos) < 2 {
					return model.Polygon{}, fmt.Errorf("ring %d position %d: want [lng, lat]", i, j)
				}
				ring = append(ring, model.Coordinate{Lat: pos[1], Lng: pos[0]})
			}
			p.Rings = append(p.Rings, ring)
		}
		return p, nil
	case "Feature":
		return parseBoundaryObject(obj.Geometry)
	case "":
		if obj.Rings != nil {
			return model.Polygon{Rings: obj.Rings}, nil
		}
		return model.Polygon{}, errBoundaryFormat
	default:
		return model.Polygon{}, fmt.Errorf("unsupported geometry type %q", obj.Type)
	}
}

func parseRing(raw json.RawMessage) (model.Ring, error) {
	var pairs [][]float64
	if err := json.Unmarshal(raw, &pairs); err == nil {
		ring := make(model.Ring, 0, len(pairs))
		for i, pair := range pairs {
			if len(pair) != 2 {
				return nil, fmt.Errorf("vertex %d: want [lat, lng]", i)
			}
			ring = append(ring, model.Coordinate{Lat: pair[0], Lng: pair[1]})
		}
		return ring, nil
	}

	var points []model.Coordinate
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, errBoundaryFormat
	}
	return model.Ring(points), nil
}

// decodePhoto decodes a base64 photo, with or without a data URL prefix.
func decodePhoto(encoded, filename string) (*model.Photo, error) {
	if encoded == "" {
		return nil, nil
	}
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: photo is not valid base64", service.ErrInvalidPhoto)
	}
	return &model.Photo{Filename: filename, Data: data}, nil
}

// formPhoto reads the "photo" file part of a multipart form, if present.
func formPhoto(r *http.Request) (*model.Photo, error) {
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidPhoto, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidPhoto, err)
	}
	return &model.Photo{Filename: header.Filename, Data: data}, nil
}

// formCoordinate reads "lat" and "lng" form values. Both or neither must
// be present.
func formCoordinate(form *multipart.Form) (*model.Coordinate, error) {
	lat, lng := formValue(form, "lat"), formValue(form, "lng")
	if lat == "" && lng == "" {
		return nil, nil
	}
	if lat == "" || lng == "" {
		return nil, fmt.Errorf("%w: lat and lng must be given together", service.ErrInvalidRequest)
	}

	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: lat %q", service.ErrInvalidRequest, lat)
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: lng %q", service.ErrInvalidRequest, lng)
	}
	return &model.Coordinate{Lat: la, Lng: ln}, nil
}

func formValue(form *multipart.Form, key string) string {
	if form == nil || len(form.Value[key]) == 0 {
		return ""
	}
	return strings.TrimSpace(form.Value[key][0])
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", service.ErrInvalidRequest, key)
	}
	return n, nil
}
