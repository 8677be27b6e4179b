package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
)

// fakeRepository is an in-memory Repository for service tests. It mirrors
// the storage semantics the services rely on: row-level not-found errors,
// answer upsert on (attempt, question), monotonic telemetry counters.
type fakeRepository struct {
	mu sync.Mutex

	tests       map[uint]*models.Test
	questions   map[uint]*models.Question
	numericKeys map[uint]float64
	attempts    map[uint]*models.Attempt
	answers     map[uint]*models.Answer
	events      []*models.ProctorEvent
	members     map[string]*models.Member

	nextTestID     uint
	nextQuestionID uint
	nextAttemptID  uint
	nextAnswerID   uint
	nextEventID    uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		tests:       make(map[uint]*models.Test),
		questions:   make(map[uint]*models.Question),
		numericKeys: make(map[uint]float64),
		attempts:    make(map[uint]*models.Attempt),
		answers:     make(map[uint]*models.Answer),
		members:     make(map[string]*models.Member),
	}
}

func (r *fakeRepository) addTest(test *models.Test) {
	r.tests[test.ID] = test
	for i := range test.Questions {
		q := test.Questions[i]
		r.questions[q.ID] = &q
	}
}

func (r *fakeRepository) Test() repositories.TestRepository         { return &fakeTestRepo{r} }
func (r *fakeRepository) Question() repositories.QuestionRepository { return &fakeQuestionRepo{r} }
func (r *fakeRepository) Attempt() repositories.AttemptRepository   { return &fakeAttemptRepo{r} }
func (r *fakeRepository) Answer() repositories.AnswerRepository     { return &fakeAnswerRepo{r} }
func (r *fakeRepository) ProctorEvent() repositories.ProctorEventRepository {
	return &fakeProctorEventRepo{r}
}
func (r *fakeRepository) Member() repositories.MemberRepository { return &fakeMemberRepo{r} }

func (r *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func (r *fakeRepository) Ping(ctx context.Context) error { return nil }
func (r *fakeRepository) Close() error                   { return nil }

// ===== TESTS =====

type fakeTestRepo struct{ r *fakeRepository }

func (f *fakeTestRepo) Create(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if test.ID == 0 {
		f.r.nextTestID++
		test.ID = f.r.nextTestID
	}
	test.CreatedAt = time.Now().UTC()
	f.r.tests[test.ID] = test
	return nil
}

func (f *fakeTestRepo) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	test, ok := f.r.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *test
	copied.Questions = nil
	for i := range test.Questions {
		copied.Questions = append(copied.Questions, *cloneQuestion(&test.Questions[i]))
	}
	return &copied, nil
}

func (f *fakeTestRepo) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error) {
	test, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, _ := (&fakeQuestionRepo{f.r}).GetByTest(ctx, id)
	test.Questions = nil
	for _, q := range questions {
		test.Questions = append(test.Questions, *q)
	}
	return test, nil
}

func (f *fakeTestRepo) Update(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.tests[test.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.r.tests[test.ID] = test
	return nil
}

func (f *fakeTestRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TestStatus) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	test, ok := f.r.tests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	test.Status = status
	return nil
}

func (f *fakeTestRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	delete(f.r.tests, id)
	return nil
}

func (f *fakeTestRepo) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Test
	for _, t := range f.r.tests {
		if filters.Status != nil && t.Status != *filters.Status {
			continue
		}
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeTestRepo) GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Test
	for _, t := range f.r.tests {
		if t.CreatedBy == creatorID {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeTestRepo) ExistsByID(ctx context.Context, id uint) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	_, ok := f.r.tests[id]
	return ok, nil
}

func (f *fakeTestRepo) CountQuestions(ctx context.Context, testID uint) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var count int64
	for _, q := range f.r.questions {
		if q.TestID == testID {
			count++
		}
	}
	return count, nil
}

// ===== QUESTIONS =====

type fakeQuestionRepo struct{ r *fakeRepository }

func (f *fakeQuestionRepo) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	q, ok := f.r.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneQuestion(q), nil
}

func (f *fakeQuestionRepo) GetByTest(ctx context.Context, testID uint) ([]*models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Question
	for _, q := range f.r.questions {
		if q.TestID == testID {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// cloneQuestion copies a question and its options so callers cannot mutate
// stored rows through shared slices.
func cloneQuestion(q *models.Question) *models.Question {
	copied := *q
	copied.Options = append([]models.QuestionOption(nil), q.Options...)
	return &copied
}

func (f *fakeQuestionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, q := range questions {
		if q.ID == 0 {
			f.r.nextQuestionID++
			q.ID = f.r.nextQuestionID
		}
		f.r.questions[q.ID] = q
	}
	return nil
}

func (f *fakeQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.questions[question.ID] = question
	return nil
}

func (f *fakeQuestionRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	delete(f.r.questions, id)
	return nil
}

func (f *fakeQuestionRepo) GetNumericKey(ctx context.Context, questionID uint) (*models.NumericAnswerKey, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	expected, ok := f.r.numericKeys[questionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.NumericAnswerKey{QuestionID: questionID, Expected: expected}, nil
}

func (f *fakeQuestionRepo) GetNumericKeysByTest(ctx context.Context, testID uint) (map[uint]float64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	out := make(map[uint]float64)
	for qid, expected := range f.r.numericKeys {
		if q, ok := f.r.questions[qid]; ok && q.TestID == testID {
			out[qid] = expected
		}
	}
	return out, nil
}

func (f *fakeQuestionRepo) SetNumericKey(ctx context.Context, tx *gorm.DB, key *models.NumericAnswerKey) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.numericKeys[key.QuestionID] = key.Expected
	return nil
}

// ===== ATTEMPTS =====

type fakeAttemptRepo struct{ r *fakeRepository }

func (f *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.nextAttemptID++
	attempt.ID = f.r.nextAttemptID
	attempt.CreatedAt = time.Now().UTC()
	copied := *attempt
	f.r.attempts[attempt.ID] = &copied
	return nil
}

func (f *fakeAttemptRepo) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	attempt, ok := f.r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *attempt
	return &copied, nil
}

func (f *fakeAttemptRepo) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Attempt, error) {
	attempt, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	answers, _ := (&fakeAnswerRepo{f.r}).GetByAttempt(ctx, id)
	for _, a := range answers {
		attempt.Answers = append(attempt.Answers, *a)
	}
	return attempt, nil
}

func (f *fakeAttemptRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	copied := *attempt
	f.r.attempts[attempt.ID] = &copied
	return nil
}

func (f *fakeAttemptRepo) GetActiveAttempt(ctx context.Context, testID uint, memberID string) (*models.Attempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, a := range f.r.attempts {
		if a.TestID == testID && a.MemberID == memberID && a.Status == models.AttemptInProgress {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) GetActiveAttemptForUpdate(ctx context.Context, tx *gorm.DB, testID uint, memberID string) (*models.Attempt, error) {
	return f.GetActiveAttempt(ctx, testID, memberID)
}

func (f *fakeAttemptRepo) HasActiveAttempt(ctx context.Context, testID uint, memberID string) (bool, error) {
	_, err := f.GetActiveAttempt(ctx, testID, memberID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (f *fakeAttemptRepo) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Attempt
	for _, a := range f.r.attempts {
		if filters.TestID != nil && a.TestID != *filters.TestID {
			continue
		}
		if filters.MemberID != nil && a.MemberID != *filters.MemberID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		copied := *a
		if member, ok := f.r.members[a.MemberID]; ok {
			copied.Member = *member
		}
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeAttemptRepo) GetByMemberAndTest(ctx context.Context, testID uint, memberID string) ([]*models.Attempt, error) {
	attempts, _, err := f.List(ctx, repositories.AttemptFilters{TestID: &testID, MemberID: &memberID})
	return attempts, err
}

func (f *fakeAttemptRepo) GetAttemptCount(ctx context.Context, testID uint, memberID string) (int64, error) {
	attempts, err := f.GetByMemberAndTest(ctx, testID, memberID)
	if err != nil {
		return 0, err
	}
	return int64(len(attempts)), nil
}

func (f *fakeAttemptRepo) MarkSubmitted(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	attempt, ok := f.r.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &submittedAt
	return nil
}

func (f *fakeAttemptRepo) UpdateGrade(ctx context.Context, tx *gorm.DB, id uint, gradeEarned float64) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	attempt, ok := f.r.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.GradeEarned = &gradeEarned
	return nil
}

func (f *fakeAttemptRepo) RaiseTelemetry(ctx context.Context, tx *gorm.DB, id uint, totals repositories.TelemetryTotals) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	attempt, ok := f.r.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if totals.TabSwitchCount > attempt.TabSwitchCount {
		attempt.TabSwitchCount = totals.TabSwitchCount
	}
	if totals.TimeOffPageSeconds > attempt.TimeOffPageSeconds {
		attempt.TimeOffPageSeconds = totals.TimeOffPageSeconds
	}
	return nil
}

func (f *fakeAttemptRepo) GetTestAttemptStats(ctx context.Context, testID uint) (*repositories.AttemptStats, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	stats := &repositories.AttemptStats{}
	for _, a := range f.r.attempts {
		if a.TestID != testID {
			continue
		}
		stats.TotalAttempts++
		if a.Status == models.AttemptSubmitted {
			stats.SubmittedAttempts++
			if a.GradeEarned != nil {
				stats.AverageScore += *a.GradeEarned
			}
		} else {
			stats.InProgress++
		}
		stats.AverageTabSwitch += float64(a.TabSwitchCount)
	}
	if stats.SubmittedAttempts > 0 {
		stats.AverageScore /= float64(stats.SubmittedAttempts)
	}
	if stats.TotalAttempts > 0 {
		stats.AverageTabSwitch /= float64(stats.TotalAttempts)
	}
	return stats, nil
}

// ===== ANSWERS =====

type fakeAnswerRepo struct{ r *fakeRepository }

func (f *fakeAnswerRepo) Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, existing := range f.r.answers {
		if existing.AttemptID == answer.AttemptID && existing.QuestionID == answer.QuestionID {
			answer.ID = existing.ID
			answer.CreatedAt = existing.CreatedAt
			copied := *answer
			f.r.answers[existing.ID] = &copied
			return nil
		}
	}
	f.r.nextAnswerID++
	answer.ID = f.r.nextAnswerID
	answer.CreatedAt = time.Now().UTC()
	copied := *answer
	f.r.answers[answer.ID] = &copied
	return nil
}

func (f *fakeAnswerRepo) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	answer, ok := f.r.answers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *answer
	return &copied, nil
}

func (f *fakeAnswerRepo) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.Answer, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Answer
	for _, a := range f.r.answers {
		if a.AttemptID == attemptID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAnswerRepo) GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uint) (*models.Answer, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, a := range f.r.answers {
		if a.AttemptID == attemptID && a.QuestionID == questionID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAnswerRepo) UpdateGrade(ctx context.Context, tx *gorm.DB, grade repositories.AnswerGrade) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	answer, ok := f.r.answers[grade.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now().UTC()
	points := grade.Points
	answer.PointsAwarded = &points
	answer.GradedAt = &now
	answer.GraderNote = grade.Note
	if grade.GraderID != "" {
		graderID := grade.GraderID
		answer.GradedBy = &graderID
	}
	return nil
}

func (f *fakeAnswerRepo) AreAllAnswersGraded(ctx context.Context, attemptID uint) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, a := range f.r.answers {
		if a.AttemptID == attemptID && a.GradedAt == nil {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeAnswerRepo) GetGradingStats(ctx context.Context, attemptID uint) (*repositories.GradingStats, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	stats := &repositories.GradingStats{}
	for _, a := range f.r.answers {
		if a.AttemptID != attemptID {
			continue
		}
		stats.TotalAnswers++
		if a.GradedAt != nil {
			stats.GradedAnswers++
		} else {
			stats.PendingAnswers++
		}
	}
	return stats, nil
}

// ===== PROCTOR EVENTS =====

type fakeProctorEventRepo struct{ r *fakeRepository }

func (f *fakeProctorEventRepo) Append(ctx context.Context, tx *gorm.DB, event *models.ProctorEvent) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.nextEventID++
	event.ID = f.r.nextEventID
	event.CreatedAt = time.Now().UTC()
	copied := *event
	f.r.events = append(f.r.events, &copied)
	return nil
}

func (f *fakeProctorEventRepo) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.ProctorEvent, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.ProctorEvent
	for _, e := range f.r.events {
		if e.AttemptID == attemptID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (f *fakeProctorEventRepo) CountByAttempt(ctx context.Context, attemptID uint) (int64, error) {
	events, err := f.GetByAttempt(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	return int64(len(events)), nil
}

// ===== MEMBERS =====

type fakeMemberRepo struct{ r *fakeRepository }

func (f *fakeMemberRepo) GetByID(ctx context.Context, id string) (*models.Member, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	member, ok := f.r.members[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *member
	return &copied, nil
}

func (f *fakeMemberRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.Member, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Member
	for _, id := range ids {
		if member, ok := f.r.members[id]; ok {
			copied := *member
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeMemberRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	_, ok := f.r.members[id]
	return ok, nil
}

func (f *fakeMemberRepo) Upsert(ctx context.Context, tx *gorm.DB, member *models.Member) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	copied := *member
	f.r.members[member.ID] = &copied
	return nil
}
