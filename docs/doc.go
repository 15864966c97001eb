// Package docs provides the OpenAPI documentation served at /swagger.json.
//
// Semtag API
//
//	@title			Semtag API
//	@version		1.0
//	@description	Batch refinement of coarse taxonomy codes using an LLM classification oracle.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/semtag
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/semtag/serve.go -o . --outputTypes go --parseDependency --parseInternal
