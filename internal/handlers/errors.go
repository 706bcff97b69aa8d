package handlers

import "errors"

var (
	errMissingUser  = errors.New("authenticated user required")
	errBadDatasetID = errors.New("dataset id must be a UUID")
	errBadBody      = errors.New("request body must be a JSON object")
	errMissingFile  = errors.New("multipart field \"file\" is required")
)
