package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/AceFire6/flagsmith/model"
)

const (
	projectTable = "Project"
)

var projectSelect sq.SelectBuilder

func init() {
	projectSelect = sq.
		Select("ID", "Name", "EnableDynamoDB", "CreateAt", "DeleteAt").
		From(projectTable)
}

// CreateProject records the given project to the database, assigning it a
// unique ID. The project's identity migration row is created alongside it so
// a migration status exists for every project from the moment it does.
func (sqlStore *SQLStore) CreateProject(project *model.Project) error {
	project.ID = model.NewID()
	project.CreateAt = GetMillis()

	_, err := sqlStore.execBuilder(sqlStore.db, sq.
		Insert(projectTable).
		SetMap(map[string]interface{}{
			"ID":             project.ID,
			"Name":           project.Name,
			"EnableDynamoDB": project.EnableDynamoDB,
			"CreateAt":       project.CreateAt,
			"DeleteAt":       0,
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create project")
	}

	err = sqlStore.createIdentityMigration(project.ID)
	if err != nil {
		return errors.Wrap(err, "failed to create identity migration for project")
	}

	return nil
}

// GetProject fetches the given project by ID.
func (sqlStore *SQLStore) GetProject(id string) (*model.Project, error) {
	var project model.Project
	err := sqlStore.getBuilder(sqlStore.db, &project, projectSelect.Where("ID = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to query for project")
	}

	return &project, nil
}

// GetProjects fetches the given page of projects. The first page is 0.
func (sqlStore *SQLStore) GetProjects(paging model.Paging) ([]*model.Project, error) {
	builder := projectSelect.OrderBy("CreateAt ASC")
	builder = applyPagingFilter(builder, paging)

	projects := []*model.Project{}
	err := sqlStore.selectBuilder(sqlStore.db, &projects, builder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query for projects")
	}

	return projects, nil
}

// DeleteProject marks the given project as deleted, but does not remove the
// record from the database.
func (sqlStore *SQLStore) DeleteProject(id string) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(projectTable).
		Set("DeleteAt", GetMillis()).
		Where("ID = ?", id).
		Where("DeleteAt = 0"),
	)
	if err != nil {
		return errors.Wrap(err, "failed to mark project as deleted")
	}

	return nil
}
