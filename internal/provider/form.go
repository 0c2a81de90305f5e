package provider

import (
	"html"
	"strings"
)

// formField preserves the field order providers document; some payment pages
// are sensitive to it.
type formField struct {
	Name  string
	Value string
}

type formValues []formField

func (f *formValues) add(name, value string) {
	*f = append(*f, formField{Name: name, Value: value})
}

// autoSubmitForm renders a self-submitting POST form targeting the provider's
// hosted payment page. The hosting application serves it as-is to the
// customer's browser.
func autoSubmitForm(action string, fields formValues) string {
	var b strings.Builder

	b.WriteString(`<form action="` + html.EscapeString(action) + `" method="POST" id="payform"> `)
	for _, f := range fields {
		b.WriteString(`<input type="hidden" name="` + html.EscapeString(f.Name) +
			`" value="` + html.EscapeString(f.Value) + `"> `)
	}
	b.WriteString(`<noscript> Please click the submit button below.<br/> <button>Submit</button> </noscript>`)
	b.WriteString(`</form>`)
	b.WriteString(`<script>(function(){ document.getElementById("payform").submit(); }())</script>`)

	return b.String()
}
