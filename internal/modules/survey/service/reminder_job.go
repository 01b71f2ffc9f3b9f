package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

const ReminderJobName = "survey_reminders"

// ReminderJob nudges students about surveys that close within a day.
type ReminderJob struct {
	surveys  SurveyService
	schedule string
}

func NewReminderJob(surveys SurveyService, schedule string) *ReminderJob {
	return &ReminderJob{surveys: surveys, schedule: schedule}
}

func (j *ReminderJob) Name() string     { return ReminderJobName }
func (j *ReminderJob) Schedule() string { return j.schedule }

func (j *ReminderJob) Run(ctx context.Context) error {
	sent, err := j.surveys.SendReminders(ctx)
	if err != nil {
		return err
	}
	logrus.WithField("reminders", sent).Info("survey reminders sent")
	return nil
}

const ReleaseJobName = "survey_releases"

// ReleaseJob tells students about surveys that were scheduled for a later release.
type ReleaseJob struct {
	surveys  SurveyService
	schedule string
}

func NewReleaseJob(surveys SurveyService, schedule string) *ReleaseJob {
	return &ReleaseJob{surveys: surveys, schedule: schedule}
}

func (j *ReleaseJob) Name() string     { return ReleaseJobName }
func (j *ReleaseJob) Schedule() string { return j.schedule }

func (j *ReleaseJob) Run(ctx context.Context) error {
	sent, err := j.surveys.SendReleaseNotices(ctx)
	if err != nil {
		return err
	}
	logrus.WithField("notifications", sent).Info("survey release notices sent")
	return nil
}
