package endpoints

import (
	"github.com/jackzampolin/semtag/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	eps := []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},
	}
	eps = append(eps, JobCommands()...)
	eps = append(eps, jobBodyForms()...)
	eps = append(eps, TaxonomyCommands()...)
	eps = append(eps, LLMCallCommands()...)
	eps = append(eps, PromptCommands()...)

	// Swagger/OpenAPI endpoints
	eps = append(eps, &SwaggerEndpoint{}, &SwaggerUIEndpoint{})
	return eps
}

// JobCommands returns the endpoints grouped under "jobs".
func JobCommands() []api.Endpoint {
	return []api.Endpoint{
		&CreateJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&JobControlEndpoint{Action: ActionPause},
		&JobControlEndpoint{Action: ActionCancel},
		&JobControlEndpoint{Action: ActionResume},
		&ProcessChunkEndpoint{},
		&JobReportEndpoint{},
	}
}

// jobBodyForms take the job id in a {"jobId"} body.
func jobBodyForms() []api.Endpoint {
	return []api.Endpoint{
		&JobControlEndpoint{Action: ActionPause, BodyForm: true},
		&JobControlEndpoint{Action: ActionCancel, BodyForm: true},
		&JobControlEndpoint{Action: ActionResume, BodyForm: true},
		&ProcessChunkEndpoint{BodyForm: true},
	}
}

// TaxonomyCommands returns the endpoints grouped under "taxonomy".
func TaxonomyCommands() []api.Endpoint {
	return []api.Endpoint{
		&GetTaxonomyEndpoint{},
		&RefreshTaxonomyEndpoint{},
	}
}

// LLMCallCommands returns the endpoints grouped under "llmcalls".
func LLMCallCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListLLMCallsEndpoint{},
		&LLMCallSummaryEndpoint{},
	}
}

// PromptCommands returns the endpoints grouped under "prompts".
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
	}
}
