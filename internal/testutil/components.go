package testutil

// DefaultDataConfig is a data config with one dataset per environment.
const DefaultDataConfig = `{
  "datasets": [
    {"DATA_PURPOSE": "training", "ENV_NAME": "dev", "DATASET_NAME": "taxi-dev"},
    {"DATA_PURPOSE": "training", "ENV_NAME": "prod", "DATASET_NAME": "taxi-prod"}
  ]
}`

// DefaultConda is a minimal conda specification.
const DefaultConda = `name: taxi-env
dependencies:
  - python=3.8
  - pip
`

// StageFiles are definition files for the six stages, keyed by file name.
var StageFiles = map[string]string{
	"prep.yml": `name: prep_taxi_data
version: 1
inputs:
  raw_data:
    type: uri_folder
outputs:
  prep_data:
    type: uri_folder
command: python prep.py --raw_data ${{inputs.raw_data}} --prep_data ${{outputs.prep_data}}
`,
	"transform.yml": `name: taxi_feature_engineering
version: 1
inputs:
  clean_data:
    type: uri_folder
outputs:
  transformed_data:
    type: uri_folder
command: python transform.py
`,
	"train.yml": `name: train_linear_regression_model
version: 1
inputs:
  training_data:
    type: uri_folder
outputs:
  model_output:
    type: uri_folder
  test_data:
    type: uri_folder
  model_metadata:
    type: uri_file
command: python train.py
`,
	"predict.yml": `name: predict_taxi_fares
version: 1
inputs:
  model_input:
    type: uri_folder
  test_data:
    type: uri_folder
outputs:
  predictions:
    type: uri_folder
command: python predict.py
`,
	"score.yml": `name: score_model
version: 1
inputs:
  predictions:
    type: uri_folder
  model:
    type: uri_folder
  threshold:
    type: number
    default: 0.8
outputs:
  score_report:
    type: uri_folder
command: python score.py
`,
	"register.yml": `name: register_model
version: 1
inputs:
  model_metadata:
    type: uri_file
  model_name:
    type: string
  score_report:
    type: uri_folder
  build_reference:
    type: string
    optional: true
    default: local
command: python register.py
`,
}
