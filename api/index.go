package handler

import (
	"io"
	"net/http"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/function"
	"github.com/awantoch/loanscore/utils"
)

// Handler is the entry point for Vercel serverless functions. It hands the raw
// body to the function handler and copies its envelope onto the response.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(constants.HeaderAllowOrigin, "*")
	w.Header().Set(constants.HeaderAllowMethods, constants.CORSAllowMethods)
	w.Header().Set(constants.HeaderAllowHeaders, constants.CORSAllowHeaders)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.DefaultMaxBodyBytes))
	if err != nil {
		utils.WriteHTTPDetail(w, http.StatusRequestEntityTooLarge, constants.ResponseBodyTooLarge)
		return
	}

	resp, err := function.Default().Invoke(r.Context(), string(body))
	if err != nil {
		utils.ErrorCtx(r.Context(), "prediction failed", "error", err)
		utils.WriteHTTPDetail(w, http.StatusInternalServerError, constants.ResponseInternalError)
		return
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		utils.Debug(constants.LogWriteFailed, err)
	}
}
