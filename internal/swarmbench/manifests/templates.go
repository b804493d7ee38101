package manifests

import (
	"bytes"
	"text/template"

	"github.com/pkg/errors"

	"github.com/swarmbench/swarmbench/internal/swarmbench/configuration"
	"github.com/swarmbench/swarmbench/internal/swarmbench/domain"
)

// Params parameterise the rendered configmap payloads and the built objects.
type Params struct {
	Run   domain.RunContext
	Paths configuration.PathsConfiguration
}

// The controller entrypoint idles until the trigger file appears, then runs
// the first testplan found and records the outcome in the status marker.
const entrypointTemplate = `#!/bin/sh
set -u

rm -f {{ .Paths.StatusFile }}

{{ if .Run.TestplanRepo }}git clone --depth 1 {{ .Run.TestplanRepo }} {{ .Paths.TestplansDir }} || true
{{ end }}mkdir -p {{ .Paths.ResultsDir }}

while true; do
  if [ -f {{ .Paths.TriggerFile }} ]; then
    rm -f {{ .Paths.TriggerFile }}
    echo RUNNING > {{ .Paths.StatusFile }}
    JMX=$(ls -1 {{ .Paths.TestplansDir }}/*.jmx 2>/dev/null | head -n 1)
    if [ -z "$JMX" ]; then
      JMX={{ .Paths.DefaultTestplan }}
    fi
    WORKERS=$(getent hosts jmeter-slaves | awk '{print $1}' | paste -sd, -)
    if jmeter -n -t "$JMX" \
        -R "$WORKERS" \
        -Jserver.rmi.ssl.disable=true \
        -GTARGET_BASE_URL={{ .Run.TargetBaseURL }} \
        -GTHREADS={{ .Run.Threads }} \
        -GLOOP_COUNT={{ .Run.LoopCount }} \
        -l {{ .Paths.ResultsDir }}/results.jtl; then
      echo FINISHED > {{ .Paths.StatusFile }}
    else
      echo ERROR > {{ .Paths.StatusFile }}
    fi
  fi
  sleep 2
done
`

const jmeterPropertiesTemplate = `server.rmi.ssl.disable=true
server_port={{ .Run.RMIPort }}
client.rmi.localport={{ .Run.RMIPort }}
server.rmi.localport={{ .Run.RMIPort }}
`

func renderTemplate(name string, text string, params Params) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse template %s", name)
	}
	buffer := &bytes.Buffer{}
	if err := tmpl.Execute(buffer, params); err != nil {
		return "", errors.Wrapf(err, "failed to render template %s", name)
	}
	return buffer.String(), nil
}
