// Package http implements the HTTP handlers of the SchoolPulse service.
//
// Handlers are a thin layer between the chi router and the services: they
// parse and validate the request, call the service and render the result with
// go-chi/render. Service errors are converted to RFC 7807 problems through
// errors.ErrorHandler, so every failure has the same body:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "entity \"Z\" not found",
//	    "instance": "/api/catalog/entities/Z/series"
//	}
//
// # Routes
//
//	GET  /api/catalog/status
//	GET  /api/catalog/entities
//	GET  /api/catalog/entities/{entity}/series
//	GET  /api/catalog/entities/{entity}/mean?metric=
//	GET  /api/catalog/entities/{entity}/totals
//	GET  /api/catalog/entities/{entity}/periods/{period}    {period} may be "latest"
//	GET  /api/catalog/rankings/{metric}                     ?format=csv for a download
//	GET  /api/catalog/tiers?metric=&value=
//	GET  /api/catalog/export.csv
//	POST /api/catalog/workbooks    multipart, field "file"
//	POST /api/catalog/sheets       {"spreadsheet_id": "..."}
//
// The health, version and metrics endpoints are mounted at the root.
package http
