package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AlertTransitionResponse struct {
	Status string `json:"status"`
	Alert  Alert  `json:"alert"`
}

type ObservationCreatedResponse struct {
	Status      string      `json:"status"`
	Observation Observation `json:"observation"`
}
