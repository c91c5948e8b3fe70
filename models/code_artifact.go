package models

// CodeArtifact is software published alongside research, with what it takes to install and
// rerun it.
type CodeArtifact struct {
	AIResource
	Name                            string  `json:"name" gorm:"column:name;type:varchar(250);not null" validate:"required,max=250"`
	DOI                             *string `json:"doi" gorm:"column:doi;type:varchar(150)" validate:"omitempty,max=150"`
	Abstract                        *string `json:"abstract" gorm:"column:abstract;type:text" validate:"omitempty,max=5000"`
	HardwareResourcesDescription    *string `json:"hardware_resources_description" gorm:"column:hardware_resources_description;type:text"`
	OSDescription                   *string `json:"os_description" gorm:"column:os_description;type:text"`
	SoftwareDependencies            *string `json:"software_dependencies" gorm:"column:software_dependencies;type:text"`
	OtherDependencies               *string `json:"other_dependencies" gorm:"column:other_dependencies;type:text"`
	CompilationProcess              *string `json:"compilation_process" gorm:"column:compilation_process;type:text"`
	CompilationTimeSeconds          *int    `json:"compilation_time_seconds" gorm:"column:compilation_time_seconds" validate:"omitempty,gte=0"`
	DeploymentProcess               *string `json:"deployment_process" gorm:"column:deployment_process;type:text"`
	DeploymentTimeSeconds           *int    `json:"deployment_time_seconds" gorm:"column:deployment_time_seconds" validate:"omitempty,gte=0"`
	ExperimentWorkflow              *string `json:"experiment_workflow" gorm:"column:experiment_workflow;type:text"`
	ExperimentEstimationTimeSeconds *int    `json:"experiment_estimation_time_seconds" gorm:"column:experiment_estimation_time_seconds" validate:"omitempty,gte=0"`
	ResultsDescription              *string `json:"results_description" gorm:"column:results_description;type:text"`
	PublicationResultsExperiment    *string `json:"publication_results_experiment" gorm:"column:publication_results_experiment;type:text"`
	OtherNotes                      *string `json:"other_notes" gorm:"column:other_notes;type:text"`
	ContentURL                      *string `json:"content_url" gorm:"column:content_url;type:varchar(256)" validate:"omitempty,url,max=256"`
	MachineRunnable                 *bool   `json:"machine_runnable" gorm:"column:machine_runnable"`
	Type                            *string `json:"type" gorm:"column:type;type:varchar(150)" validate:"omitempty,max=150"`
	InstallationScript              *string `json:"installation_script" gorm:"column:installation_script;type:text"`
	RunScript                       *string `json:"run_script" gorm:"column:run_script;type:text"`
	Output                          *string `json:"output" gorm:"column:output;type:text"`
}

func (CodeArtifact) TableName() string {
	return "code_artifact"
}
