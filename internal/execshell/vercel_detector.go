package execshell

import (
	"path"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// VercelDetectorName is the tool hint that selects VercelDetector.
	VercelDetectorName = "vercel"
	// VercelMimeType identifies structured Vercel deployment items.
	VercelMimeType = "application/vnd.cellrun.vercel+json"

	vercelDeploymentTypeProductionConstant = "production"
	vercelDeploymentTypePreviewConstant    = "preview"
	vercelProductionLinePrefixConstant     = "production:"
	vercelURLPrefixConstant                = "https://"
	vercelEmptyDocumentConstant            = `{"type":"vercel"}`
	vercelOutputItemsPathConstant          = "output.outputItems"
	vercelPayloadPathConstant              = "output.payload"
	vercelDeploymentTypePathConstant       = "output.type"
	vercelURLPathConstant                  = "output.url"
	vercelErrorPathConstant                = "output.error"
	vercelCellIDPathConstant               = "output.uuid"
	vercelJSONErrorMessagePathConstant     = "error.message"
	vercelJSONURLPathConstant              = "url"
	vercelJSONTargetPathConstant           = "target"
	environmentAssignmentMarkerConstant    = "="
	flagPrefixConstant                     = "-"
)

var commandLauncherTokens = map[string]struct{}{
	"npx":  {},
	"bunx": {},
	"dlx":  {},
	"pnpm": {},
	"yarn": {},
	"exec": {},
	"env":  {},
}

// PrimaryProgram returns the program a shell command line runs, skipping
// leading environment assignments and package-runner launchers.
func PrimaryProgram(command string) string {
	for _, token := range strings.Fields(command) {
		if strings.Contains(token, environmentAssignmentMarkerConstant) && !strings.HasPrefix(token, flagPrefixConstant) {
			continue
		}
		if _, launcher := commandLauncherTokens[token]; launcher {
			continue
		}
		if strings.HasPrefix(token, flagPrefixConstant) {
			continue
		}
		return path.Base(token)
	}
	return ""
}

// VercelDetector renders Vercel CLI output as a structured deployment item.
type VercelDetector struct{}

// NewVercelDetector constructs the detector.
func NewVercelDetector() VercelDetector {
	return VercelDetector{}
}

// Name implements Detector.
func (VercelDetector) Name() string {
	return VercelDetectorName
}

// Matches implements Detector.
func (VercelDetector) Matches(command string) bool {
	return PrimaryProgram(command) == VercelDetectorName
}

// Transform implements Detector. JSON lines become the payload; other lines are kept verbatim.
// Production runs are reported as production even when the output carries no marker.
func (VercelDetector) Transform(buffer []byte, metadata ExecutionMetadata) RenderableItem {
	outputItems := []string{}
	deploymentType := vercelDeploymentTypePreviewConstant
	if metadata.ProductionDeployment {
		deploymentType = vercelDeploymentTypeProductionConstant
	}
	var payload, deploymentURL, errorMessage string

	for _, line := range strings.Split(string(buffer), "\n") {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) == 0 {
			continue
		}

		if gjson.Valid(trimmedLine) && gjson.Parse(trimmedLine).IsObject() {
			payload = trimmedLine
			if message := gjson.Get(trimmedLine, vercelJSONErrorMessagePathConstant); message.Exists() {
				errorMessage = message.String()
			}
			if urlValue := gjson.Get(trimmedLine, vercelJSONURLPathConstant); urlValue.Exists() {
				deploymentURL = urlValue.String()
			}
			if gjson.Get(trimmedLine, vercelJSONTargetPathConstant).String() == vercelDeploymentTypeProductionConstant {
				deploymentType = vercelDeploymentTypeProductionConstant
			}
			continue
		}

		outputItems = append(outputItems, trimmedLine)
		loweredLine := strings.ToLower(trimmedLine)
		if strings.HasPrefix(loweredLine, vercelProductionLinePrefixConstant) {
			deploymentType = vercelDeploymentTypeProductionConstant
		}
		if len(deploymentURL) == 0 {
			if urlIndex := strings.Index(trimmedLine, vercelURLPrefixConstant); urlIndex >= 0 {
				deploymentURL = strings.Fields(trimmedLine[urlIndex:])[0]
			}
		}
	}

	document := vercelEmptyDocumentConstant
	document = setDocumentValue(document, vercelOutputItemsPathConstant, outputItems)
	document = setDocumentValue(document, vercelDeploymentTypePathConstant, deploymentType)
	if len(payload) > 0 {
		if updatedDocument, setError := sjson.SetRaw(document, vercelPayloadPathConstant, payload); setError == nil {
			document = updatedDocument
		}
	}
	if len(deploymentURL) > 0 {
		document = setDocumentValue(document, vercelURLPathConstant, deploymentURL)
	}
	if len(errorMessage) > 0 {
		document = setDocumentValue(document, vercelErrorPathConstant, errorMessage)
	}
	if len(metadata.CellID) > 0 {
		document = setDocumentValue(document, vercelCellIDPathConstant, metadata.CellID)
	}

	return RenderableItem{Mime: VercelMimeType, Data: []byte(document)}
}

func setDocumentValue(document string, documentPath string, value any) string {
	updatedDocument, setError := sjson.Set(document, documentPath, value)
	if setError != nil {
		return document
	}
	return updatedDocument
}
