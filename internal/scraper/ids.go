package scraper

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"monitor-precos/pkg/e"
)

var rawIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// parseRaw valida a entrada do usuário. Devolve a URL quando a entrada
// parece um link, ou nil quando é um ID cru.
func parseRaw(raw string) (string, *url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil, e.Validation("identificador vazio")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", nil, e.Validation("identificador contém espaços ou caracteres de controle: %q", raw)
		}
	}

	if !looksLikeURL(s) {
		if !rawIDPattern.MatchString(s) {
			return "", nil, e.Validation("identificador inválido: %q", s)
		}
		return s, nil, nil
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", nil, e.Validation("URL inválida: %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", nil, e.Validation("esquema de URL não suportado: %q", u.Scheme)
	}
	return s, u, nil
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, "://") || strings.Contains(s, "/") || strings.HasPrefix(s, "www.")
}

// lastSegment retorna o último trecho não vazio do caminho da URL
func lastSegment(u *url.URL) (string, error) {
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	seg = strings.TrimSuffix(seg, path.Ext(seg))
	if seg == "" || seg == "." || seg == "/" || !rawIDPattern.MatchString(seg) {
		return "", e.Validation("não foi possível extrair o ID da URL: %s", u.String())
	}
	return seg, nil
}

// extractWith aplica o padrão da plataforma ao caminho e à query da URL.
// Sem correspondência, devolve o último trecho do caminho.
func extractWith(u *url.URL, re *regexp.Regexp) (string, error) {
	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	if m := re.FindStringSubmatch(target); len(m) > 1 {
		return m[1], nil
	}
	return lastSegment(u)
}

func hostHas(rawURL string, domains ...string) bool {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
