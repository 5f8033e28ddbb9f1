package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/daheeyun/haruplan/internal/models"
)

func TestComposeMinutesAndHours(t *testing.T) {
	var f MessageFactory

	assert.Equal(t, "30분 뒤 '회의' 일정이 시작돼요",
		f.Compose("회의", 30*time.Minute, models.TargetEvent))
	assert.Equal(t, "59분 뒤 '회의' 일정이 시작돼요",
		f.Compose("회의", 59*time.Minute, models.TargetEvent))

	// Whole hours, fractions dropped.
	assert.Equal(t, "1시간 뒤 '회의' 일정이 시작돼요",
		f.Compose("회의", 90*time.Minute, models.TargetEvent))
	assert.Equal(t, "3시간 뒤 '보고서 제출' 마감이에요",
		f.Compose("보고서 제출", 3*time.Hour+25*time.Minute, models.TargetTodo))
}

func TestComposeClampsToOneMinute(t *testing.T) {
	var f MessageFactory
	assert.Equal(t, "1분 뒤 '회의' 일정이 시작돼요",
		f.Compose("회의", 10*time.Second, models.TargetEvent))
}

func TestComposeTodoUsesDeadlinePhrasing(t *testing.T) {
	var f MessageFactory
	assert.Equal(t, "10분 뒤 '세금 신고' 마감이에요",
		f.Compose("세금 신고", 10*time.Minute, models.TargetTodo))
}
