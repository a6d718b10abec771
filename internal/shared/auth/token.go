package auth

import (
	"net/http"
	"strings"
)

// ExtractBearerToken extracts the JWT token from the Authorization header.
// It handles the "Bearer " prefix and returns an empty string if no token is present.
func ExtractBearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	return ExtractBearerTokenFromHeader(r.Header.Get("Authorization"))
}

// ExtractBearerTokenFromHeader extracts the token from an Authorization header value.
func ExtractBearerTokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// ExtractTokenFromSubprotocol reads a token offered as "bearer, <token>" in
// Sec-WebSocket-Protocol, the only header browsers let WebSocket clients set.
func ExtractTokenFromSubprotocol(r *http.Request) string {
	if r == nil {
		return ""
	}
	var protos []string
	for _, h := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(h, ",") {
			if p = strings.TrimSpace(p); p != "" {
				protos = append(protos, p)
			}
		}
	}
	for i := 0; i+1 < len(protos); i++ {
		if strings.EqualFold(protos[i], "bearer") {
			return protos[i+1]
		}
	}
	return ""
}

// ExtractToken tries, in order, the Authorization header, the WebSocket subprotocol and the
// query parameter (default "token"). Returns the first non-empty token found.
func ExtractToken(r *http.Request, queryParam string) string {
	if token := ExtractBearerToken(r); token != "" {
		return token
	}
	if token := ExtractTokenFromSubprotocol(r); token != "" {
		return token
	}
	if r == nil || r.URL == nil {
		return ""
	}
	if queryParam == "" {
		queryParam = "token"
	}
	return strings.TrimSpace(r.URL.Query().Get(queryParam))
}
