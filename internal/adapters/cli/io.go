package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

// readInput reads a file, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func readEvaluationRequest(path string, stdin io.Reader) (domain.EvaluationRequest, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return domain.EvaluationRequest{}, err
	}
	var req domain.EvaluationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.EvaluationRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode evaluation request", err)
	}
	return req, nil
}

func printJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
