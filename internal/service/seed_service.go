package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
)

var seedTitles = map[models.Career][]string{
	models.CareerAccounting: {
		"Contabilidad Financiera", "Auditoría y Control Interno", "Costos y Presupuestos",
		"Finanzas Corporativas", "Tributación Empresarial", "Análisis de Estados Financieros",
		"Normas Internacionales de Contabilidad", "Matemáticas Financieras",
		"Contabilidad Gerencial", "Sistemas Contables Computarizados",
	},
	models.CareerNursing: {
		"Anatomía y Fisiología Humana", "Farmacología Clínica", "Cuidados Intensivos",
		"Enfermería Materno-Infantil", "Nutrición y Dietética", "Salud Pública y Epidemiología",
		"Psicología de la Salud", "Emergencias y Primeros Auxilios",
		"Ética y Legislación en Enfermería", "Geriatría y Cuidados Paliativos",
	},
	models.CareerAgriculture: {
		"Producción Animal", "Cultivos Agrícolas", "Suelos y Fertilización", "Sistemas de Riego",
		"Agronegocios y Comercialización", "Sanidad Vegetal", "Agricultura Sostenible",
		"Maquinaria Agrícola", "Genética y Mejoramiento Animal", "Manejo Post-Cosecha",
	},
	models.CareerComputing: {
		"Fundamentos de Programación", "Bases de Datos Relacionales", "Redes y Comunicaciones",
		"Desarrollo Web Avanzado", "Seguridad Informática", "Inteligencia Artificial",
		"Sistemas Operativos", "Arquitectura de Computadoras",
		"Desarrollo de Aplicaciones Móviles", "Ingeniería de Software",
	},
}

var (
	seedPublishers = []string{
		"Editorial Académica", "Educación Superior", "Publicaciones Universitarias",
		"Libros Técnicos S.A.", "Editorial Científica", "Grupo Editorial Profesional",
		"Ediciones Educativas",
	}
	seedAuthors = []string{
		"María Rodríguez", "Juan Carlos Pérez", "Ana Sofía Mendoza", "Roberto Gómez",
		"Laura Fernández", "Carlos Alberto Torres", "Patricia Ramírez",
		"Miguel Ángel Sánchez", "Gabriela López", "Fernando Martínez",
	}
	seedFirstNames = []string{
		"Ana", "Luis", "María", "Carlos", "Laura", "José", "Sofía", "Miguel",
		"Sara", "Diego", "Valentina", "Pedro", "Jean", "Jorge", "Valeria",
	}
	seedLastNames = []string{
		"González", "Rodríguez", "López", "Martínez", "Pérez", "Sánchez", "Romero",
		"Torres", "Ramírez", "Flores", "Vargas", "Mendoza", "Díaz", "Herrera", "Silva",
	}
	emailFolding = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", " ", "")
)

// SeedConfig sizes the sample data set.
type SeedConfig struct {
	RandomSeed int64
	Books      int
	Students   int
	Loans      int
}

// SeedResult counts what was generated.
type SeedResult struct {
	Books    int `json:"books"`
	Students int `json:"students"`
	Loans    int `json:"loans"`
}

// SeedService fills an empty library with sample data. Outstanding sample
// loans take their copy through the ledger like any other loan.
type SeedService struct {
	store  stateStore
	ledger availabilityLedger
	cfg    SeedConfig
	logger *zap.Logger
}

// NewSeedService constructs the seeder.
func NewSeedService(st stateStore, ledger availabilityLedger, cfg SeedConfig, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{store: st, ledger: ledger, cfg: cfg, logger: logger}
}

// SeedIfEmpty generates data only when there are no books, students or loans.
// It reports nil when the library already holds data.
func (s *SeedService) SeedIfEmpty(ctx context.Context) (*SeedResult, error) {
	seed := uint64(s.cfg.RandomSeed)
	if s.cfg.RandomSeed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	var result *SeedResult
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		if len(tx.Books()) > 0 || len(tx.Students()) > 0 || len(tx.Loans()) > 0 {
			return nil
		}
		result = s.generate(tx, rng)
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to seed sample data")
	}
	if result != nil {
		s.logger.Info("sample data seeded",
			zap.Int("books", result.Books),
			zap.Int("students", result.Students),
			zap.Int("loans", result.Loans),
		)
	}
	return result, nil
}

func (s *SeedService) generate(tx *store.Tx, rng *rand.Rand) *SeedResult {
	now := tx.Now()
	today := models.DateOf(now)
	careers := models.Careers()
	result := &SeedResult{}

	books := make([]models.Book, 0, s.cfg.Books)
	for i := 0; i < s.cfg.Books; i++ {
		career := careers[i%len(careers)]
		copies := between(rng, 1, 10)
		book := models.Book{
			ID:              uuid.NewString(),
			Title:           pick(rng, seedTitles[career]),
			Author:          pick(rng, seedAuthors),
			ISBN:            fmt.Sprintf("978-%d", between(rng, 1000000000, 9999999999)),
			PublishYear:     between(rng, 2000, 2023),
			Publisher:       pick(rng, seedPublishers),
			Career:          career,
			Copies:          copies,
			AvailableCopies: copies,
			Description:     "Libro de texto para estudiantes universitarios",
			Location:        fmt.Sprintf("Estante %d", between(rng, 1, 20)),
			CreatedAt:       now.AddDate(0, 0, -between(rng, 30, 365)),
			UpdatedAt:       now,
		}
		tx.PutBook(book)
		books = append(books, book)
		result.Books++
	}

	byCareer := make(map[models.Career][]models.Student)
	codes := make(map[string]bool)
	var students []models.Student
	for i := 0; i < s.cfg.Students; i++ {
		name := pick(rng, seedFirstNames)
		lastName := pick(rng, seedLastNames)
		code := uniqueCode(rng, codes)
		student := models.Student{
			ID:          uuid.NewString(),
			StudentCode: code,
			Name:        name,
			LastName:    lastName,
			Email:       fmt.Sprintf("%s.%s@alumnos.edu.pe", emailFolding.Replace(strings.ToLower(name)), emailFolding.Replace(strings.ToLower(lastName))),
			Career:      pick(rng, careers),
			Cycle:       between(rng, 1, 6),
			CreatedAt:   now.AddDate(0, 0, -between(rng, 30, 365)),
			UpdatedAt:   now,
		}
		if rng.Float64() < 0.7 {
			student.Phone = fmt.Sprintf("9%d", between(rng, 10000000, 99999999))
		}
		tx.PutStudent(student)
		students = append(students, student)
		byCareer[student.Career] = append(byCareer[student.Career], student)
		result.Students++
	}

	if len(books) == 0 || len(students) == 0 {
		return result
	}
	for i := 0; i < s.cfg.Loans; i++ {
		book := books[rng.IntN(len(books))]
		candidates := byCareer[book.Career]
		if len(candidates) == 0 {
			candidates = students
		}
		student := candidates[rng.IntN(len(candidates))]

		loanDate := today.AddDate(0, 0, -between(rng, 1, 30))
		loan := models.Loan{
			ID:        uuid.NewString(),
			BookID:    book.ID,
			StudentID: student.ID,
			Book:      book.Snapshot(),
			Student:   student.Snapshot(),
			LoanDate:  loanDate,
			DueDate:   loanDate.AddDate(0, 0, between(rng, 7, 21)),
			Status:    models.LoanStatusActive,
			CreatedAt: loanDate,
			UpdatedAt: now,
		}
		if rng.Float64() < 0.3 {
			loan.Notes = "Préstamo para proyecto de clase"
		}
		if rng.Float64() < 0.6 {
			returned := loanDate.AddDate(0, 0, between(rng, 1, 20))
			if returned.After(now) {
				returned = now
			}
			loan.Status = models.LoanStatusReturned
			loan.ReturnDate = &returned
		} else if !s.ledger.DecreaseAvailability(tx, book.ID) {
			continue
		}
		tx.PutLoan(loan)
		result.Loans++
	}
	return result
}

func uniqueCode(rng *rand.Rand, taken map[string]bool) string {
	for {
		code := fmt.Sprintf("%c%d", 'A'+rune(rng.IntN(4)), between(rng, 10000, 99999))
		if !taken[code] {
			taken[code] = true
			return code
		}
	}
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}
