package assistant

import (
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/anatolykoptev/go_moments/internal/engine"
)

func functionDefinitions() []openai.FunctionDefinition {
	return []openai.FunctionDefinition{
		{
			Name:        FnProvideCaptions,
			Description: engine.CaptionsToolDescription,
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"searchKey": {
						Type:        jsonschema.String,
						Description: "The YouTube search term used to find relevant videos.",
					},
				},
				Required: []string{"searchKey"},
			},
		},
		{
			Name:        FnShowMoments,
			Description: engine.MomentsToolDescription,
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"videoInformation": {
						Type:  jsonschema.Array,
						Items: &videoInformationSchema,
					},
				},
				Required: []string{"videoInformation"},
			},
		},
	}
}

var videoInformationSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"videoId":         {Type: jsonschema.String},
		"videoTitle":      {Type: jsonschema.String},
		"bestMomentStart": {Type: jsonschema.Number, Description: "Seconds"},
		"bestMomentEnd":   {Type: jsonschema.Number, Description: "Seconds"},
		"thumbnails": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"default": {
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"url": {Type: jsonschema.String},
					},
					Required: []string{"url"},
				},
			},
			Required: []string{"default"},
		},
	},
	Required: []string{"videoId", "videoTitle", "bestMomentStart", "bestMomentEnd", "thumbnails"},
}
