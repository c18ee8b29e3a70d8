package httpapi

import (
	"encoding/json"
	"net/http"
)

// envelope is the service-wide response shape.
type envelope struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
	Data   any    `json:"data,omitempty"`
}

func writeSuccess(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Result: "success", Msg: msg, Data: data})
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Result: "fail", Msg: msg})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
