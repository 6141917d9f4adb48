package web

import "html/template"

const pageTemplates = `
{{define "header"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} - Splendid</title>
{{if .IdentityReady}}<script src="{{.Identity.URL}}" async defer></script>{{end}}
</head>
<body>
{{end}}

{{define "footer"}}
</body>
</html>
{{end}}

{{define "pricing.html"}}{{template "header" .}}
<h1>Premium</h1>
{{with .Message}}<p class="notice">{{.}}</p>{{end}}
<p>Premium unlocks every tool in the studio.</p>
{{if .User}}
<p>Signed in as {{.User.DisplayName}}.</p>
<form method="post" action="/logout"><button type="submit">Log out</button></form>
{{else if .IdentityReady}}
<div id="{{.Identity.Container}}"></div>
{{else}}
<p class="error">Sign in is unavailable right now.</p>
{{end}}
{{if .PaymentReady}}
<div id="{{.Payment.Container}}"></div>
<script src="{{.Payment.URL}}"></script>
{{else}}
<p class="error">Payments are unavailable right now. Please try again later.</p>
{{end}}
{{template "footer" .}}{{end}}

{{define "studio.html"}}{{template "header" .}}
<h1>Studio</h1>
<p>{{.User.DisplayName}} - {{printf "%.1f" .User.Credits}} credits</p>
{{range .Groups}}
<h2>{{.Category}}</h2>
<ul>
{{range .Tools}}<li data-tool="{{.Slug}}">{{.Name}}{{if .IsNew}} <em>new</em>{{end}}</li>
{{end}}</ul>
{{end}}
<form method="post" action="/logout"><button type="submit">Log out</button></form>
{{template "footer" .}}{{end}}
`

func parseTemplates() *template.Template {
	return template.Must(template.New("pages").Parse(pageTemplates))
}
