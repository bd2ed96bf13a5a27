package roster

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"attendancehub/internal/model"
)

// Seed is the YAML shape used to load an initial roster.
type Seed struct {
	Trainers []model.Trainer `yaml:"trainers"`
	Students []model.Student `yaml:"students"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	var s Seed
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Seed{}, fmt.Errorf("seed: decode %s: %w", path, err)
	}
	return s, nil
}

// ImportResult counts what Import wrote and what it left alone.
type ImportResult struct {
	StudentsAdded   int `json:"studentsAdded"`
	StudentsSkipped int `json:"studentsSkipped"`
	TrainersAdded   int `json:"trainersAdded"`
	TrainersSkipped int `json:"trainersSkipped"`
}

// Import adds every seed entry whose business id is not stored yet, so it
// can be re-run safely.
func (s *Service) Import(ctx context.Context, seed Seed) (ImportResult, error) {
	var res ImportResult
	for _, t := range seed.Trainers {
		_, err := s.AddTrainer(ctx, t)
		switch {
		case err == nil:
			res.TrainersAdded++
		case errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrPasscodeTaken):
			res.TrainersSkipped++
		default:
			return res, fmt.Errorf("import trainer %s: %w", t.ID, err)
		}
	}
	for _, st := range seed.Students {
		_, err := s.AddStudent(ctx, st)
		switch {
		case err == nil:
			res.StudentsAdded++
		case errors.Is(err, ErrDuplicateKey):
			res.StudentsSkipped++
		default:
			return res, fmt.Errorf("import student %s: %w", st.ID, err)
		}
	}
	s.log.Info("roster imported",
		zap.Int("students_added", res.StudentsAdded),
		zap.Int("students_skipped", res.StudentsSkipped),
		zap.Int("trainers_added", res.TrainersAdded),
		zap.Int("trainers_skipped", res.TrainersSkipped))
	return res, nil
}
