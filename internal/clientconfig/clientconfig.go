// Package clientconfig renders the browser-side configuration module.
package clientconfig

import (
	"io"
	"proctorportal/backend/internal/config"
	"text/template"
)

const ContentType = "application/javascript"

const sdkVersion = "9.22.0"

var script = template.Must(template.New("firebase-config.js").Parse(`
import { initializeApp } from "https://www.gstatic.com/firebasejs/{{.Version}}/firebase-app.js";
import { getAuth } from "https://www.gstatic.com/firebasejs/{{.Version}}/firebase-auth.js";
import { getFirestore } from "https://www.gstatic.com/firebasejs/{{.Version}}/firebase-firestore.js";

const firebaseConfig = {
{{- range $i, $o := .Options}}{{if $i}},{{end}}
  {{$o.Name}}: "{{js $o.Value}}"
{{- end}}
};

const app = initializeApp(firebaseConfig);
const auth = getAuth(app);
const db = getFirestore(app);

export { app, auth, db };
`))

// Render writes the configuration module exposing opts, in order.
func Render(w io.Writer, opts []config.Option) error {
	return script.Execute(w, struct {
		Version string
		Options []config.Option
	}{sdkVersion, opts})
}
