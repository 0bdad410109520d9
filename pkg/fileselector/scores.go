package fileselector

import (
	"path/filepath"

	"github.com/pombredanne/facereclib/pkg/configs/experiment"
)

// TModelPrefix prefixes C files of T-norm models.
const TModelPrefix = "TM"

func scoreFile(dir, group, name string) string {
	return filepath.Join(dir, group, name+experiment.ScoreExtension)
}

// AFile holds scores of the model against its probes.
func (fs *FileSelector) AFile(modelID, group string) (string, error) {
	return ensured(scoreFile(fs.conf.Paths.ZTNormA, group, modelID))
}

// BFile holds scores of the model against Z-norm probes.
func (fs *FileSelector) BFile(modelID, group string) (string, error) {
	return ensured(scoreFile(fs.conf.Paths.ZTNormB, group, modelID))
}

// CFile holds scores of the T-norm model against every probe of the group.
func (fs *FileSelector) CFile(tmodelID, group string) (string, error) {
	return ensured(scoreFile(fs.conf.Paths.ZTNormC, group, TModelPrefix+tmodelID))
}

// CFileForModel caches C scores of probes of the model as a matrix,
// one row per T-norm model.
func (fs *FileSelector) CFileForModel(modelID, group string) string {
	return filepath.Join(fs.conf.Paths.ZTNormC, group, modelID+experiment.FeatureExtension)
}

// DFile holds scores of the T-norm model against Z-norm probes.
func (fs *FileSelector) DFile(tmodelID, group string) (string, error) {
	return ensured(scoreFile(fs.conf.Paths.ZTNormD, group, tmodelID))
}

// DMatrixFile caches D of the group as a matrix.
func (fs *FileSelector) DMatrixFile(group string) string {
	return filepath.Join(fs.conf.Paths.ZTNormD, group, "D"+experiment.FeatureExtension)
}

// DSameValueFile tells which Z-norm probes share identity with the T-norm model.
func (fs *FileSelector) DSameValueFile(tmodelID, group string) (string, error) {
	return ensured(scoreFile(fs.conf.Paths.ZTNormDSameValue, group, tmodelID))
}

// DSameValueMatrixFile caches the same identity mask of the group as a matrix.
func (fs *FileSelector) DSameValueMatrixFile(group string) string {
	return filepath.Join(fs.conf.Paths.ZTNormDSameValue, group, "D_sameValue"+experiment.FeatureExtension)
}

func (fs *FileSelector) NoNormFile(modelID, group string) (string, error) {
	return ensured(scoreFile(fs.conf.Paths.ScoresNoNorm, group, modelID))
}

func (fs *FileSelector) NoNormResultFile(group string) string {
	return filepath.Join(fs.conf.Paths.ScoresNoNorm, "scores-"+group)
}

func (fs *FileSelector) ZTNormFile(modelID, group string) (string, error) {
	return ensured(scoreFile(fs.conf.Paths.ScoresZTNorm, group, modelID))
}

func (fs *FileSelector) ZTNormResultFile(group string) (string, error) {
	return ensured(filepath.Join(fs.conf.Paths.ScoresZTNorm, "scores-"+group))
}

// CreateDirectories creates every score directory of the group.
func (fs *FileSelector) CreateDirectories(group string) error {
	p := fs.conf.Paths
	for _, dir := range []string{
		p.ZTNormA, p.ZTNormB, p.ZTNormC, p.ZTNormD, p.ZTNormDSameValue, p.ScoresNoNorm, p.ScoresZTNorm,
	} {
		if err := ensureDir(filepath.Join(dir, group)); err != nil {
			return err
		}
	}
	return nil
}
