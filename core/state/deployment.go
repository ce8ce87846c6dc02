package state

// Deployment records where the sale and its token live so a restarted node
// can rebind its engines without redeploying.
type Deployment struct {
	Network    string
	Deployer   [20]byte
	Sale       [20]byte
	Token      [20]byte
	DeployedAt uint64
}

// DeploymentPut stores the deployment record.
func (m *Manager) DeploymentPut(d *Deployment) error {
	return m.KVPut(deploymentKeyBytes, d)
}

// DeploymentGet loads the deployment record, if any.
func (m *Manager) DeploymentGet() (*Deployment, bool, error) {
	d := new(Deployment)
	ok, err := m.KVGet(deploymentKeyBytes, d)
	if err != nil || !ok {
		return nil, ok, err
	}
	return d, true, nil
}
